// Package common contains shared constants and sentinel errors used across
// numeria components.
package common

// SessionHeaderName is the gRPC metadata key that carries the session id on
// authenticated calls.
const SessionHeaderName = "session_id"

// DefaultLanguage is assigned to users who did not pick a language.
const DefaultLanguage = "en"

// Security log event names.
const (
	EventRegister               = "register"
	EventLoginSuccess           = "login_success"
	EventLoginFailed            = "login_failed"
	EventLoginBlocked           = "login_blocked"
	EventLoginTwoFactorRequired = "login_2fa_required"
	EventTwoFactorLoginSuccess  = "2fa_login_success"
	EventTwoFactorLoginFailed   = "2fa_login_failed"
	EventBackupCodeUsed         = "backup_code_used"
	EventTwoFactorEnabled       = "2fa_enabled"
	EventTwoFactorDisabled      = "2fa_disabled"
	EventBackupCodesRegenerated = "backup_codes_regenerated"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordResetCompleted = "password_reset_completed"
	EventPasswordChanged        = "password_changed"
	EventVerificationEmailSent  = "verification_email_sent"
	EventEmailVerified          = "email_verified"
	EventOAuthLogin             = "oauth_login"
	EventOAuthLinked            = "oauth_linked"
	EventOAuthUnlinked          = "oauth_unlinked"
	EventOAuthAccountCreated    = "oauth_account_created"
	EventOAuthTokenRefreshed    = "oauth_token_refreshed"
	EventLogout                 = "logout"
	EventLogoutAll              = "logout_all"
	EventSecurityLogExported    = "security_log_exported"
	EventAdminCreated           = "admin_created"
)

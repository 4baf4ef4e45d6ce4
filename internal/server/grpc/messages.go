package grpc

import (
	"time"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Empty is used by methods that take or return nothing.
type Empty struct{}

// User is the public view of an account.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	EmailVerified    bool      `json:"email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	HasPassword      bool      `json:"has_password"`
	PreferredLang    string    `json:"preferred_lang,omitempty"`
	IsAdmin          bool      `json:"is_admin,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func userFrom(u *models.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		HasPassword:      u.HasPassword(),
		PreferredLang:    u.PreferredLang,
		IsAdmin:          u.IsAdmin,
		CreatedAt:        u.CreatedAt,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Lang     string `json:"lang,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse either carries a session or asks for a second factor. In
// the latter case SessionID is empty and PendingToken must be sent back with
// the code.
type LoginResponse struct {
	SessionID         string    `json:"session_id,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
	User              *User     `json:"user,omitempty"`
	TwoFactorRequired bool      `json:"two_factor_required,omitempty"`
	UserID            string    `json:"user_id,omitempty"`
	PendingToken      string    `json:"pending_token,omitempty"`
}

// Verify2FALoginRequest finishes a login; PendingToken is the value returned
// with TwoFactorRequired.
type Verify2FALoginRequest struct {
	PendingToken string `json:"pending_token"`
	Code         string `json:"code"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ConfirmPasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type Setup2FAResponse struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	QRCode      string   `json:"qr_code"`
	BackupCodes []string `json:"backup_codes"`
}

type Confirm2FARequest struct {
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backup_codes"`
	Code        string   `json:"code"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type CodeRequest struct {
	Code string `json:"code"`
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes,omitempty"`
	Remaining   int      `json:"remaining"`
}

type ProviderRequest struct {
	Provider string `json:"provider"`
}

type StartOAuthResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// OAuthCallbackRequest carries the provider redirect parameters. State is
// the value returned by the provider; ExpectedState is the one the client
// kept from StartOAuth.
type OAuthCallbackRequest struct {
	Provider      string `json:"provider"`
	Code          string `json:"code"`
	State         string `json:"state"`
	ExpectedState string `json:"expected_state"`
}

type UnlinkRequest struct {
	Provider string `json:"provider"`
	Password string `json:"password,omitempty"`
}

// RefreshOAuthResponse reports when the renewed provider access token
// expires. A zero ExpiresAt means the provider gave no expiry.
type RefreshOAuthResponse struct {
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

type ExportRequest struct {
	UserID string `json:"user_id"`
}

type ExportResponse struct {
	URL string `json:"url"`
}

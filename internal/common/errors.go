// Package common defines shared constants and sentinel errors used across
// the numeria server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// ErrValidation is wrapped by every client-correctable input error; the
	// wrapping message is safe to show verbatim.
	ErrValidation = errors.New("validation error")

	// Authentication failures. Deliberately generic.
	ErrInvalidCredentials   = errors.New("Invalid email or password")
	ErrInvalidTwoFactorCode = errors.New("Invalid verification code")

	// ErrTwoFactorLoginExpired means the pending second-factor step is
	// missing, forged or too old; the client must sign in again.
	ErrTwoFactorLoginExpired = errors.New("two-factor sign-in expired, please sign in again")

	// Single-use token outcomes. Both require possession of a token, so the
	// distinction is safe to report.
	ErrTokenInvalid = errors.New("invalid or unknown token")
	ErrTokenExpired = errors.New("token expired")

	// State conflicts.
	ErrEmailTaken              = errors.New("email already registered")
	ErrEmailAlreadyVerified    = errors.New("email already verified")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrOAuthLinkedElsewhere    = errors.New("oauth account already linked to another user")
	ErrOAuthNotLinked          = errors.New("oauth provider not linked")
	ErrOAuthEmailUnverified    = errors.New("oauth provider email is not verified")
	ErrLastAuthMethod          = errors.New("cannot remove the only remaining sign-in method")
	ErrPasswordRequired        = errors.New("password required")

	// OAuth flow errors.
	ErrUnknownProvider   = errors.New("unknown oauth provider")
	ErrInvalidOAuthState = errors.New("Invalid OAuth state parameter")

	// Rate limiting.
	ErrRateLimited = errors.New("too many requests, try again later")

	// ErrDecryptionFailed is the only error the encryption layer reports on
	// decrypt. It never carries the underlying cause.
	ErrDecryptionFailed = errors.New("decryption failed")
)

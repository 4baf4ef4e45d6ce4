package models

import "time"

// OAuthAccount links a user to an identity at an OAuth provider. There is at
// most one row per (UserID, Provider) and per (Provider, ProviderUserID).
type OAuthAccount struct {
	ID                    string
	UserID                string
	Provider              string
	ProviderUserID        string
	AccessTokenEncrypted  string
	RefreshTokenEncrypted string
	ExpiresAt             time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// OAuthTokens are the plaintext tokens returned by a provider.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// OAuthProfile is the identity reported by a provider.
type OAuthProfile struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
}

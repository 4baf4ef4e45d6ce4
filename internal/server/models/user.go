// Package models defines server-side data models persisted in the database
// and the result types returned by the auth services.
package models

import "time"

// User is an account of the platform. PasswordHash is empty for accounts
// created through an OAuth provider that never set a password.
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	EmailVerified    bool
	TwoFactorEnabled bool
	IsBlocked        bool
	PreferredLang    string
	IsAdmin          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

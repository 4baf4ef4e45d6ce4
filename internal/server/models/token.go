package models

import "time"

// AuthToken is a stored single-use token (password reset or email
// verification). Only the SHA-256 hex of the token is kept.
type AuthToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenValidation is the three-way outcome of validating a single-use token:
// valid with UserID set, invalid, or invalid because it expired.
type TokenValidation struct {
	Valid   bool
	UserID  string
	Expired bool
}

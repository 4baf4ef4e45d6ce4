package models

import "time"

// Session is a server-side login session. ID is the opaque value the client
// presents on every authenticated call.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its lifetime at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

package models

import "time"

// SecurityLog is an append-only audit record.
type SecurityLog struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Event     string            `json:"event"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

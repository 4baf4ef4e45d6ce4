// Package securitylogs provides the append-only audit trail store.
package securitylogs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Repository is the storage contract for security log entries. Entries are
// never updated or deleted.
type Repository interface {
	Create(ctx context.Context, e *models.SecurityLog) error
	// CountSince counts userID's entries of event created at or after since.
	CountSince(ctx context.Context, userID, event string, since time.Time) (int64, error)
	// ListByUser returns up to limit entries, newest first. limit <= 0
	// returns all.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SecurityLog, error)
}

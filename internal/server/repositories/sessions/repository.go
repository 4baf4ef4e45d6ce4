// Package sessions provides persistence for login sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Repository is the storage contract for sessions.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteByUser removes every session of userID except exceptID.
	// An empty exceptID removes all of them.
	DeleteByUser(ctx context.Context, userID string, exceptID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

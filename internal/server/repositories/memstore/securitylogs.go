package memstore

import (
	"context"
	"maps"
	"time"

	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/google/uuid"
)

// SecurityLogRepo implements securitylogs.Repository.
type SecurityLogRepo struct{ s *Store }

func (r *SecurityLogRepo) Create(_ context.Context, e *models.SecurityLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.now()
	}
	row := *e
	row.Metadata = maps.Clone(e.Metadata)
	r.s.logs = append(r.s.logs, row)
	return nil
}

func (r *SecurityLogRepo) CountSince(_ context.Context, userID, event string, since time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, e := range r.s.logs {
		if e.UserID == userID && e.Event == event && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *SecurityLogRepo) ListByUser(_ context.Context, userID string, limit int) ([]models.SecurityLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.SecurityLog
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		e := r.s.logs[i]
		if e.UserID != userID {
			continue
		}
		e.Metadata = maps.Clone(e.Metadata)
		result = append(result, e)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Events returns the event names recorded for userID, oldest first.
func (r *SecurityLogRepo) Events(userID string) []string {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []string
	for _, e := range r.s.logs {
		if e.UserID == userID {
			out = append(out, e.Event)
		}
	}
	return out
}

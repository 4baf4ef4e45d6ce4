package memstore

import (
	"context"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// SessionRepo implements sessions.Repository.
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, sess *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r *SessionRepo) Get(_ context.Context, id string) (*models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &sess, nil
}

func (r *SessionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteByUser(_ context.Context, userID string, exceptID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sess := range r.s.sessions {
		if sess.UserID == userID && id != exceptID {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *SessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// CountByUser reports how many sessions userID holds.
func (r *SessionRepo) CountByUser(userID string) int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

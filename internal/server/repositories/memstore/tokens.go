package memstore

import (
	"context"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
	"github.com/google/uuid"
)

// TokenRepo implements authtokens.Repository for one family.
type TokenRepo struct {
	s     *Store
	table authtokens.Table
}

func (r *TokenRepo) rows() map[string]models.AuthToken {
	return r.s.tokens[r.table]
}

func (r *TokenRepo) Create(_ context.Context, t *models.AuthToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.rows()[t.TokenHash] = *t
	return nil
}

func (r *TokenRepo) FindByHash(_ context.Context, hash string) (*models.AuthToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.rows()[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *TokenRepo) DeleteByHash(_ context.Context, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.rows(), hash)
	return nil
}

func (r *TokenRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for h, t := range r.rows() {
		if t.UserID == userID {
			delete(r.rows(), h)
		}
	}
	return nil
}

func (r *TokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for h, t := range r.rows() {
		if !t.ExpiresAt.After(now) {
			delete(r.rows(), h)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored tokens of this family.
func (r *TokenRepo) Len() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.rows())
}

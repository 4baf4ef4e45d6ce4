package memstore

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/google/uuid"
)

// UserRepo implements users.Repository.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return nil, common.ErrEmailTaken
		}
	}
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = u
	return &u, nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

// GetByIDForUpdate relies on Store.WithinTx for exclusion.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *UserRepo) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (r *UserRepo) SetEmailVerified(_ context.Context, id string, verified bool) error {
	return r.update(id, func(u *models.User) { u.EmailVerified = verified })
}

func (r *UserRepo) SetTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	return r.update(id, func(u *models.User) { u.TwoFactorEnabled = enabled })
}

// SetBlocked is not part of users.Repository; tests and tooling use it to
// flip the flag an administrator would set.
func (r *UserRepo) SetBlocked(id string, blocked bool) error {
	return r.update(id, func(u *models.User) { u.IsBlocked = blocked })
}

func (r *UserRepo) update(id string, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&u)
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

func (r *UserRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.users)), nil
}

package memstore

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/google/uuid"
)

// OAuthAccountRepo implements oauthaccounts.Repository.
type OAuthAccountRepo struct{ s *Store }

func (r *OAuthAccountRepo) Upsert(_ context.Context, a *models.OAuthAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var existing *models.OAuthAccount
	for _, row := range r.s.oauth {
		if row.Provider == a.Provider && row.ProviderUserID == a.ProviderUserID && row.UserID != a.UserID {
			return common.ErrOAuthLinkedElsewhere
		}
		if row.UserID == a.UserID && row.Provider == a.Provider {
			existing = &row
		}
	}

	now := r.s.now()
	row := *a
	row.UpdatedAt = now
	if existing != nil {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CreatedAt = now
	}
	r.s.oauth[row.ID] = row
	a.ID = row.ID
	return nil
}

func (r *OAuthAccountRepo) find(match func(models.OAuthAccount) bool) (*models.OAuthAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, row := range r.s.oauth {
		if match(row) {
			return &row, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *OAuthAccountRepo) FindByProviderUserID(_ context.Context, provider, providerUserID string) (*models.OAuthAccount, error) {
	return r.find(func(a models.OAuthAccount) bool {
		return a.Provider == provider && a.ProviderUserID == providerUserID
	})
}

func (r *OAuthAccountRepo) FindByUserAndProvider(_ context.Context, userID, provider string) (*models.OAuthAccount, error) {
	return r.find(func(a models.OAuthAccount) bool {
		return a.UserID == userID && a.Provider == provider
	})
}

func (r *OAuthAccountRepo) ListByUser(_ context.Context, userID string) ([]models.OAuthAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.OAuthAccount
	for _, row := range r.s.oauth {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, nil
}

func (r *OAuthAccountRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	list, err := r.ListByUser(ctx, userID)
	return int64(len(list)), err
}

func (r *OAuthAccountRepo) Delete(_ context.Context, userID, provider string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, row := range r.s.oauth {
		if row.UserID == userID && row.Provider == provider {
			delete(r.s.oauth, id)
			return true, nil
		}
	}
	return false, nil
}

package memstore

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// TwoFactorRepo implements twofactor.Repository.
type TwoFactorRepo struct{ s *Store }

func (r *TwoFactorRepo) Get(_ context.Context, userID string) (*models.TwoFactorAuth, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tf, ok := r.s.twoFactor[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	tf.BackupCodes = cloneCodes(tf.BackupCodes)
	return &tf, nil
}

func (r *TwoFactorRepo) Upsert(_ context.Context, tf *models.TwoFactorAuth) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	row := *tf
	row.BackupCodes = cloneCodes(tf.BackupCodes)
	row.UpdatedAt = now
	if prev, ok := r.s.twoFactor[tf.UserID]; ok {
		row.CreatedAt = prev.CreatedAt
	} else {
		row.CreatedAt = now
	}
	r.s.twoFactor[tf.UserID] = row
	return nil
}

func (r *TwoFactorRepo) ReplaceBackupCodes(_ context.Context, userID string, expected, next []string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tf, ok := r.s.twoFactor[userID]
	if !ok || !slices.Equal(tf.BackupCodes, expected) {
		return false, nil
	}
	tf.BackupCodes = cloneCodes(next)
	tf.UpdatedAt = r.s.now()
	r.s.twoFactor[userID] = tf
	return true, nil
}

func (r *TwoFactorRepo) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.twoFactor, userID)
	return nil
}

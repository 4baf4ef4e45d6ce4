// Package twofactor provides persistence for confirmed TOTP setups and their
// backup codes.
package twofactor

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Repository is the storage contract for two-factor settings.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.TwoFactorAuth, error)
	// Upsert writes the secret and backup codes, replacing any previous row.
	Upsert(ctx context.Context, tf *models.TwoFactorAuth) error
	// ReplaceBackupCodes swaps the stored list for next only if it still
	// equals expected. It reports whether the swap happened.
	ReplaceBackupCodes(ctx context.Context, userID string, expected, next []string) (bool, error)
	Delete(ctx context.Context, userID string) error
}

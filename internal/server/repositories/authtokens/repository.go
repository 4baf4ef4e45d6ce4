// Package authtokens provides persistence for hashed single-use tokens.
// Password reset and email verification tokens share one row shape and
// differ only in their table.
package authtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Table names a token family's storage table.
type Table string

const (
	PasswordResetTokens     Table = "password_reset_tokens"
	EmailVerificationTokens Table = "email_verification_tokens"
)

// Repository is the storage contract for one token family.
type Repository interface {
	Create(ctx context.Context, t *models.AuthToken) error
	// FindByHash returns the token row or common.ErrorNotFound. Expired
	// rows are returned too; the caller decides.
	FindByHash(ctx context.Context, hash string) (*models.AuthToken, error)
	DeleteByHash(ctx context.Context, hash string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

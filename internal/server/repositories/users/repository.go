// Package users provides persistence for user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Repository is the storage contract for users.
type Repository interface {
	// Create inserts user and returns it with ID and timestamps set.
	// A duplicate email yields common.ErrEmailTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByIDForUpdate reads the user and locks the row until the enclosing
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
	Count(ctx context.Context) (int64, error)
}

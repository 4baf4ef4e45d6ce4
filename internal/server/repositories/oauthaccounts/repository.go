// Package oauthaccounts provides persistence for links between users and
// OAuth provider identities.
package oauthaccounts

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// Repository is the storage contract for OAuth links.
type Repository interface {
	// Upsert creates the (user, provider) link or refreshes its identity and
	// tokens. If the provider identity belongs to another user it returns
	// common.ErrOAuthLinkedElsewhere.
	Upsert(ctx context.Context, a *models.OAuthAccount) error
	FindByProviderUserID(ctx context.Context, provider, providerUserID string) (*models.OAuthAccount, error)
	FindByUserAndProvider(ctx context.Context, userID, provider string) (*models.OAuthAccount, error)
	ListByUser(ctx context.Context, userID string) ([]models.OAuthAccount, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// Delete removes the link and reports whether one existed.
	Delete(ctx context.Context, userID, provider string) (bool, error)
}

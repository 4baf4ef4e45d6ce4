package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
	"golang.org/x/oauth2"
)

// OAuthService talks to the configured identity providers and stores the
// resulting links. Provider tokens are encrypted before they are written.
// State values are produced and checked by the caller.
type OAuthService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	encryption  *EncryptionService
	providers   map[string]OAuthProvider
	httpClient  *http.Client
}

// NewOAuthService registers providers. Outbound calls use timeout.
func NewOAuthService(db dbx.DBTX, m repomanager.RepositoryManager, enc *EncryptionService, timeout time.Duration, providers ...OAuthProvider) *OAuthService {
	s := &OAuthService{
		db:          db,
		repomanager: m,
		encryption:  enc,
		providers:   make(map[string]OAuthProvider, len(providers)),
		httpClient:  &http.Client{Timeout: timeout},
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// WithDB returns a copy of the service whose repositories run on db.
func (s *OAuthService) WithDB(db dbx.DBTX) *OAuthService {
	c := *s
	c.db = db
	return &c
}

// Providers lists the registered provider names in sorted order.
func (s *OAuthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for n := range s.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *OAuthService) provider(name string) (OAuthProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, common.ErrUnknownProvider
	}
	return p, nil
}

func (s *OAuthService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// GetAuthorizationURL builds the consent redirect carrying state.
func (s *OAuthService) GetAuthorizationURL(provider, state string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.Config().AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// ExchangeCodeForTokens redeems an authorization code.
func (s *OAuthService) ExchangeCodeForTokens(ctx context.Context, provider, code string) (*models.OAuthTokens, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	tok, err := p.Config().Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w", provider, err)
	}
	return tokensFrom(tok), nil
}

// GetUserProfile fetches the identity behind accessToken.
func (s *OAuthService) GetUserProfile(ctx context.Context, provider, accessToken string) (*models.OAuthProfile, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	ctx = s.clientContext(ctx)
	client := p.Config().Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return p.FetchProfile(ctx, client)
}

// LinkOAuthAccount stores (or refreshes) the link between userID and the
// provider identity. An identity owned by another user is rejected with
// common.ErrOAuthLinkedElsewhere.
func (s *OAuthService) LinkOAuthAccount(ctx context.Context, userID, provider string, profile *models.OAuthProfile, tokens *models.OAuthTokens) error {
	if _, err := s.provider(provider); err != nil {
		return err
	}
	repo := s.repomanager.OAuthAccounts(s.db)

	owner, err := repo.FindByProviderUserID(ctx, provider, profile.ID)
	switch {
	case err == nil && owner.UserID != userID:
		return common.ErrOAuthLinkedElsewhere
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return err
	}

	account := &models.OAuthAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: profile.ID,
	}
	if tokens != nil {
		refresh := tokens.RefreshToken
		if refresh == "" {
			// Providers usually return a refresh token only on first consent.
			if prev, err := repo.FindByUserAndProvider(ctx, userID, provider); err == nil && prev.RefreshTokenEncrypted != "" {
				account.RefreshTokenEncrypted = prev.RefreshTokenEncrypted
			}
		}
		if err := s.sealTokens(account, tokens.AccessToken, refresh); err != nil {
			return err
		}
		account.ExpiresAt = tokens.ExpiresAt
	}
	return repo.Upsert(ctx, account)
}

func (s *OAuthService) sealTokens(a *models.OAuthAccount, access, refresh string) error {
	if access != "" {
		enc, err := s.encryption.Encrypt(access)
		if err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		a.AccessTokenEncrypted = enc
	}
	if refresh != "" {
		enc, err := s.encryption.Encrypt(refresh)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		a.RefreshTokenEncrypted = enc
	}
	return nil
}

// UnlinkOAuthAccount hard-deletes the link.
func (s *OAuthService) UnlinkOAuthAccount(ctx context.Context, userID, provider string) error {
	found, err := s.repomanager.OAuthAccounts(s.db).Delete(ctx, userID, provider)
	if err != nil {
		return err
	}
	if !found {
		return common.ErrOAuthNotLinked
	}
	return nil
}

// RefreshOAuthToken trades the stored refresh token for a new access token
// and persists the result.
func (s *OAuthService) RefreshOAuthToken(ctx context.Context, userID, provider string) (*models.OAuthTokens, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	repo := s.repomanager.OAuthAccounts(s.db)
	account, err := repo.FindByUserAndProvider(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrOAuthNotLinked
		}
		return nil, err
	}
	if account.RefreshTokenEncrypted == "" {
		return nil, fmt.Errorf("%w: no refresh token stored for %s", common.ErrValidation, provider)
	}
	refresh, err := s.encryption.Decrypt(account.RefreshTokenEncrypted)
	if err != nil {
		return nil, err
	}

	tok, err := p.Config().TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return nil, fmt.Errorf("%s token refresh: %w", provider, err)
	}
	tokens := tokensFrom(tok)
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refresh
	}
	if err := s.sealTokens(account, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return nil, err
	}
	account.ExpiresAt = tokens.ExpiresAt
	if err := repo.Upsert(ctx, account); err != nil {
		return nil, err
	}
	return tokens, nil
}

// ListLinkedProviders returns the provider names linked to userID.
func (s *OAuthService) ListLinkedProviders(ctx context.Context, userID string) ([]string, error) {
	accounts, err := s.repomanager.OAuthAccounts(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Provider)
	}
	return names, nil
}

func tokensFrom(tok *oauth2.Token) *models.OAuthTokens {
	return &models.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

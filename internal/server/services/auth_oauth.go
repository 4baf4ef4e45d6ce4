package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/auth"
	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// StartOAuth returns the provider consent URL and the signed state the
// caller must keep (usually in a cookie) to pass back as expectedState.
func (s *AuthService) StartOAuth(ctx context.Context, provider string) (string, string, error) {
	return s.startOAuth(provider, "")
}

// StartOAuthLink is StartOAuth for attaching a provider to userID.
func (s *AuthService) StartOAuthLink(ctx context.Context, userID, provider string) (string, string, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return "", "", err
	}
	return s.startOAuth(provider, userID)
}

func (s *AuthService) startOAuth(provider, userID string) (string, string, error) {
	if _, err := s.oauth.provider(provider); err != nil {
		return "", "", err
	}
	state, err := auth.GenerateStateToken(provider, userID, s.cfg.StateSigningKey, s.cfg.OAuthStateTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign oauth state: %w", err)
	}
	url, err := s.oauth.GetAuthorizationURL(provider, state)
	if err != nil {
		return "", "", err
	}
	return url, state, nil
}

// checkState verifies that state round-tripped unchanged, is signed by us,
// belongs to provider and was issued for userID ("" for sign-in).
func (s *AuthService) checkState(provider, state, expectedState, userID string) error {
	if state == "" || expectedState == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return common.ErrInvalidOAuthState
	}
	claims, err := auth.ParseStateToken(state, s.cfg.StateSigningKey)
	if err != nil {
		return common.ErrInvalidOAuthState
	}
	if claims.Provider != provider || claims.UserID != userID {
		return common.ErrInvalidOAuthState
	}
	return nil
}

func (s *AuthService) fetchIdentity(ctx context.Context, provider, code string) (*models.OAuthProfile, *models.OAuthTokens, error) {
	tokens, err := s.oauth.ExchangeCodeForTokens(ctx, provider, code)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.oauth.GetUserProfile(ctx, provider, tokens.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	if profile.ID == "" {
		return nil, nil, fmt.Errorf("%w: provider returned no account id", common.ErrValidation)
	}
	return profile, tokens, nil
}

// HandleOAuthCallback completes a provider sign-in. The state is checked
// before the code is exchanged. Accounts with 2FA get *TwoFactorRequired.
func (s *AuthService) HandleOAuthCallback(ctx context.Context, provider, code, state, expectedState string) (LoginResult, error) {
	if err := s.checkState(provider, state, expectedState, ""); err != nil {
		s.metrics.Login(provider, "invalid_state")
		return nil, err
	}
	profile, tokens, err := s.fetchIdentity(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	user, err := s.CreateOrLinkOAuthAccount(ctx, provider, profile, tokens)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, user, provider)
}

// CreateOrLinkOAuthAccount resolves a provider identity to a user: the
// existing owner of the link, else the account with the same (provider
// verified) email, else a new passwordless account.
//
// Unlike a plain email match, an existing account is only linked when the
// provider reports the email as verified; otherwise
// common.ErrOAuthEmailUnverified is returned and nothing is linked, since an
// unverified provider address would let anyone claim the account.
func (s *AuthService) CreateOrLinkOAuthAccount(ctx context.Context, provider string, profile *models.OAuthProfile, tokens *models.OAuthTokens) (*models.User, error) {
	users := s.repomanager.Users(s.db)

	link, err := s.repomanager.OAuthAccounts(s.db).FindByProviderUserID(ctx, provider, profile.ID)
	switch {
	case err == nil:
		owner, err := users.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, err
		}
		if err := s.oauth.LinkOAuthAccount(ctx, owner.ID, provider, profile, tokens); err != nil {
			return nil, err
		}
		return owner, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: provider returned no email address", common.ErrValidation)
	}

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !profile.EmailVerified {
			return nil, common.ErrOAuthEmailUnverified
		}
		if err := s.oauth.LinkOAuthAccount(ctx, existing.ID, provider, profile, tokens); err != nil {
			return nil, err
		}
		s.audit.Record(ctx, existing.ID, common.EventOAuthLinked, "provider", provider, "via", "email")
		return existing, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	var created *models.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			Email:         email,
			Name:          firstNonEmpty(profile.Name, email),
			EmailVerified: true,
			PreferredLang: s.cfg.DefaultLanguage,
		})
		if err != nil {
			return err
		}
		created = u
		return s.oauth.WithDB(tx).LinkOAuthAccount(ctx, u.ID, provider, profile, tokens)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, created.ID, common.EventOAuthAccountCreated, "provider", provider)
	return created, nil
}

// LinkOAuthProvider attaches a provider identity to a signed-in user after
// a StartOAuthLink round trip.
func (s *AuthService) LinkOAuthProvider(ctx context.Context, userID, provider, code, state, expectedState string) error {
	if err := s.checkState(provider, state, expectedState, userID); err != nil {
		return err
	}
	profile, tokens, err := s.fetchIdentity(ctx, provider, code)
	if err != nil {
		return err
	}
	if err := s.oauth.LinkOAuthAccount(ctx, userID, provider, profile, tokens); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, common.EventOAuthLinked, "provider", provider, "via", "user")
	return nil
}

// UnlinkOAuthProvider removes a provider link without leaving the account
// unreachable. The user row is locked for the duration of the check.
//
// With a password and another provider the unlink is free. If the password
// would be the only method left it must be supplied and correct. Without a
// password the last provider cannot be removed.
func (s *AuthService) UnlinkOAuthProvider(ctx context.Context, userID, provider, password string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}
		accounts, err := s.repomanager.OAuthAccounts(tx).ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		linked := false
		for _, a := range accounts {
			if a.Provider == provider {
				linked = true
				break
			}
		}
		if !linked {
			return common.ErrOAuthNotLinked
		}

		others := len(accounts) - 1
		switch {
		case !user.HasPassword() && others == 0:
			return common.ErrLastAuthMethod
		case user.HasPassword() && others == 0:
			if password == "" {
				return common.ErrPasswordRequired
			}
			ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
			if err != nil {
				return err
			}
			if !ok {
				return common.ErrInvalidCredentials
			}
		}
		return s.oauth.WithDB(tx).UnlinkOAuthAccount(ctx, userID, provider)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, userID, common.EventOAuthUnlinked, "provider", provider)
	return nil
}

// RefreshLinkedProvider renews the stored access token for a linked provider
// and returns its new expiry. The tokens themselves stay server-side.
func (s *AuthService) RefreshLinkedProvider(ctx context.Context, userID, provider string) (time.Time, error) {
	tokens, err := s.oauth.RefreshOAuthToken(ctx, userID, provider)
	if err != nil {
		return time.Time{}, err
	}
	s.audit.Record(ctx, userID, common.EventOAuthTokenRefreshed, "provider", provider)
	return tokens.ExpiresAt, nil
}

// LinkedProviders lists the providers attached to userID.
func (s *AuthService) LinkedProviders(ctx context.Context, userID string) ([]string, error) {
	return s.oauth.ListLinkedProviders(ctx, userID)
}

package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/auth"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOAuth(t *testing.T) {
	h := newAuthHarness(t)

	authURL, state, err := h.svc.StartOAuth(context.Background(), ProviderGoogle)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "offline", u.Query().Get("access_type"))

	claims, err := auth.ParseStateToken(state, h.svc.cfg.StateSigningKey)
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, claims.Provider)
	assert.Empty(t, claims.UserID)

	_, _, err = h.svc.StartOAuth(context.Background(), ProviderGitHub)
	assert.ErrorIs(t, err, common.ErrUnknownProvider, "github is not configured in the harness")
}

func TestHandleOAuthCallback_StateMismatchSkipsExchange(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	_, state, err := h.svc.StartOAuth(ctx, ProviderGoogle)
	require.NoError(t, err)
	forged, err := auth.GenerateStateToken(ProviderGoogle, "", []byte("other-key"), time.Minute)
	require.NoError(t, err)

	cases := map[string][2]string{
		"different values":   {"A", "B"},
		"empty expected":     {state, ""},
		"unsigned":           {"A", "A"},
		"foreign signature":  {forged, forged},
		"wrong provider":     {state, state},
		"tampered but equal": {state + "x", state + "x"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			provider := ProviderGoogle
			if name == "wrong provider" {
				provider = ProviderGitHub
			}
			res, err := h.svc.HandleOAuthCallback(ctx, provider, "code", tc[0], tc[1])
			assert.Nil(t, res)
			require.ErrorIs(t, err, common.ErrInvalidOAuthState)
			assert.Equal(t, "Invalid OAuth state parameter", err.Error())
		})
	}
	assert.Zero(t, h.stub.exchangeCount())
}

func TestHandleOAuthCallback_CreatesThenReusesAccount(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	_, state, err := h.svc.StartOAuth(ctx, ProviderGoogle)
	require.NoError(t, err)
	res, err := h.svc.HandleOAuthCallback(ctx, ProviderGoogle, "code", state, state)
	require.NoError(t, err)
	first := res.(*Authenticated)
	assert.Equal(t, "ann@example.com", first.User.Email)
	assert.True(t, first.User.EmailVerified)
	assert.False(t, first.User.HasPassword())
	assert.Equal(t, 1, h.stub.exchangeCount())

	acct, err := h.store.OAuthAccounts().FindByUserAndProvider(ctx, first.User.ID, ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "g-100", acct.ProviderUserID)
	assert.NotContains(t, acct.AccessTokenEncrypted, "access-1")
	plain, err := newTestEncryption(t).Decrypt(acct.RefreshTokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", plain)

	_, state, err = h.svc.StartOAuth(ctx, ProviderGoogle)
	require.NoError(t, err)
	res, err = h.svc.HandleOAuthCallback(ctx, ProviderGoogle, "code", state, state)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, res.(*Authenticated).User.ID)

	events := h.store.SecurityLogs().Events(first.User.ID)
	assert.Contains(t, events, common.EventOAuthAccountCreated)
	assert.Contains(t, events, common.EventOAuthLogin)
}

func TestHandleOAuthCallback_ExchangeFailure(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	_, state, err := h.svc.StartOAuth(ctx, ProviderGoogle)
	require.NoError(t, err)

	_, err = h.svc.HandleOAuthCallback(ctx, ProviderGoogle, "bad-code", state, state)
	require.Error(t, err)
	n, err := h.store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleOAuthCallback_TwoFactorGates(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ann@example.com", testPassword)
	h.enable2FA(t, reg.User.ID)

	_, state, err := h.svc.StartOAuth(ctx, ProviderGoogle)
	require.NoError(t, err)
	res, err := h.svc.HandleOAuthCallback(ctx, ProviderGoogle, "code", state, state)
	require.NoError(t, err)
	pending, ok := res.(*TwoFactorRequired)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, reg.User.ID, pending.UserID)
	assert.Equal(t, 0, h.store.Sessions().CountByUser(reg.User.ID))

	claims, err := auth.ParsePendingLoginToken(pending.PendingToken, h.svc.cfg.StateSigningKey)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.Subject)
	assert.Equal(t, ProviderGoogle, claims.Method)
}

func TestCreateOrLinkOAuthAccount_LinksByVerifiedEmail(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ann@example.com", testPassword)

	_, err := h.svc.CreateOrLinkOAuthAccount(ctx, ProviderGoogle,
		&models.OAuthProfile{ID: "g-7", Email: "ANN@example.com", EmailVerified: false}, nil)
	require.ErrorIs(t, err, common.ErrOAuthEmailUnverified)

	u, err := h.svc.CreateOrLinkOAuthAccount(ctx, ProviderGoogle,
		&models.OAuthProfile{ID: "g-7", Email: "ANN@example.com", EmailVerified: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, u.ID)

	providers, err := h.svc.LinkedProviders(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderGoogle}, providers)
}

func TestCreateOrLinkOAuthAccount_RequiresEmail(t *testing.T) {
	h := newAuthHarness(t)
	_, err := h.svc.CreateOrLinkOAuthAccount(context.Background(), ProviderGoogle,
		&models.OAuthProfile{ID: "g-7"}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreateOrLinkOAuthAccount_FailedLinkLeavesNoUser(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateOrLinkOAuthAccount(ctx, "myspace",
		&models.OAuthProfile{ID: "m-1", Email: "new@example.com", EmailVerified: true}, nil)
	require.ErrorIs(t, err, common.ErrUnknownProvider)

	_, err = h.store.Users().GetByEmail(ctx, "new@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	n, err := h.store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLinkOAuthProvider(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	reg := h.register(t, "bob@example.com", testPassword)

	_, loginState, err := h.svc.StartOAuth(ctx, ProviderGoogle)
	require.NoError(t, err)
	err = h.svc.LinkOAuthProvider(ctx, reg.User.ID, ProviderGoogle, "code", loginState, loginState)
	require.ErrorIs(t, err, common.ErrInvalidOAuthState, "sign-in state cannot be used to link")

	_, state, err := h.svc.StartOAuthLink(ctx, reg.User.ID, ProviderGoogle)
	require.NoError(t, err)
	require.NoError(t, h.svc.LinkOAuthProvider(ctx, reg.User.ID, ProviderGoogle, "code", state, state))

	acct, err := h.store.OAuthAccounts().FindByProviderUserID(ctx, ProviderGoogle, "g-100")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, acct.UserID)
}

func TestLinkOAuthProvider_IdentityOwnedElsewhere(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	owner, err := h.svc.CreateOrLinkOAuthAccount(ctx, ProviderGoogle,
		&models.OAuthProfile{ID: "g-100", Email: "owner@example.com", EmailVerified: true}, nil)
	require.NoError(t, err)
	attacker := h.register(t, "attacker@example.com", testPassword)

	_, state, err := h.svc.StartOAuthLink(ctx, attacker.User.ID, ProviderGoogle)
	require.NoError(t, err)
	err = h.svc.LinkOAuthProvider(ctx, attacker.User.ID, ProviderGoogle, "code", state, state)
	require.ErrorIs(t, err, common.ErrOAuthLinkedElsewhere)

	acct, err := h.store.OAuthAccounts().FindByProviderUserID(ctx, ProviderGoogle, "g-100")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, acct.UserID)
}

func TestUnlinkOAuthProvider_LastMethodAlwaysRefused(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	u, err := h.svc.CreateOrLinkOAuthAccount(ctx, ProviderGoogle,
		&models.OAuthProfile{ID: "g-1", Email: "solo@example.com", EmailVerified: true}, nil)
	require.NoError(t, err)

	for _, pw := range []string{"", "anything", testPassword} {
		assert.ErrorIs(t, h.svc.UnlinkOAuthProvider(ctx, u.ID, ProviderGoogle, pw), common.ErrLastAuthMethod)
	}
	n, err := h.store.OAuthAccounts().CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUnlinkOAuthProvider_PasswordRemaining(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ann@example.com", testPassword)
	_, err := h.svc.CreateOrLinkOAuthAccount(ctx, ProviderGoogle,
		&models.OAuthProfile{ID: "g-1", Email: "ann@example.com", EmailVerified: true}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, h.svc.UnlinkOAuthProvider(ctx, reg.User.ID, ProviderGitHub, testPassword), common.ErrOAuthNotLinked)
	assert.ErrorIs(t, h.svc.UnlinkOAuthProvider(ctx, reg.User.ID, ProviderGoogle, ""), common.ErrPasswordRequired)
	assert.ErrorIs(t, h.svc.UnlinkOAuthProvider(ctx, reg.User.ID, ProviderGoogle, "wrong-password"), common.ErrInvalidCredentials)

	require.NoError(t, h.svc.UnlinkOAuthProvider(ctx, reg.User.ID, ProviderGoogle, testPassword))
	providers, err := h.svc.LinkedProviders(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Empty(t, providers)
	assert.Contains(t, h.store.SecurityLogs().Events(reg.User.ID), common.EventOAuthUnlinked)
}

func TestUnlinkOAuthProvider_FreeWithAnotherMethod(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ann@example.com", testPassword)
	for _, p := range []string{ProviderGoogle, ProviderGitHub} {
		require.NoError(t, h.store.OAuthAccounts().Upsert(ctx, &models.OAuthAccount{
			UserID: reg.User.ID, Provider: p, ProviderUserID: p + "-1",
		}))
	}

	assert.NoError(t, h.svc.UnlinkOAuthProvider(ctx, reg.User.ID, ProviderGitHub, ""))
}

func TestRefreshLinkedProvider(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ann@example.com", testPassword)

	_, err := h.svc.RefreshLinkedProvider(ctx, reg.User.ID, ProviderGoogle)
	require.ErrorIs(t, err, common.ErrOAuthNotLinked)
	_, err = h.svc.RefreshLinkedProvider(ctx, reg.User.ID, ProviderGitHub)
	require.ErrorIs(t, err, common.ErrUnknownProvider)

	_, state, err := h.svc.StartOAuthLink(ctx, reg.User.ID, ProviderGoogle)
	require.NoError(t, err)
	require.NoError(t, h.svc.LinkOAuthProvider(ctx, reg.User.ID, ProviderGoogle, "code", state, state))

	before := time.Now()
	expiresAt, err := h.svc.RefreshLinkedProvider(ctx, reg.User.ID, ProviderGoogle)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(time.Hour), expiresAt, time.Minute)

	acct, err := h.store.OAuthAccounts().FindByUserAndProvider(ctx, reg.User.ID, ProviderGoogle)
	require.NoError(t, err)
	access, err := newTestEncryption(t).Decrypt(acct.AccessTokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)
	refresh, err := newTestEncryption(t).Decrypt(acct.RefreshTokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh, "kept when the provider sends none")

	assert.Contains(t, h.store.SecurityLogs().Events(reg.User.ID), common.EventOAuthTokenRefreshed)
}

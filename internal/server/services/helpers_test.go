package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

var testEncryption = sync.OnceValues(func() (*EncryptionService, error) {
	return NewEncryptionService("test-encryption-secret")
})

func newTestEncryption(t *testing.T) *EncryptionService {
	t.Helper()
	enc, err := testEncryption()
	require.NoError(t, err)
	return enc
}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(bcrypt.MinCost, 0)
	require.NoError(t, err)
	return h
}

// --- email ---

type sentMail struct {
	Kind  string
	To    string
	Token string
	Lang  string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) add(kind, to, token, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: kind, To: to, Token: token, Lang: lang})
	return m.err
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, token, lang string) error {
	return m.add("reset", to, token, lang)
}

func (m *fakeMailer) SendEmailVerificationEmail(_ context.Context, to, token, lang string) error {
	return m.add("verify", to, token, lang)
}

func (m *fakeMailer) Send2FAEnabledEmail(_ context.Context, to, lang string) error {
	return m.add("2fa_enabled", to, "", lang)
}

func (m *fakeMailer) Send2FADisabledEmail(_ context.Context, to, lang string) error {
	return m.add("2fa_disabled", to, "", lang)
}

func (m *fakeMailer) byKind(kind string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (m *fakeMailer) last(t *testing.T, kind string) sentMail {
	t.Helper()
	all := m.byKind(kind)
	require.NotEmpty(t, all, "no %s email sent", kind)
	return all[len(all)-1]
}

// --- OAuth provider ---

// oauthStub is a token endpoint plus a Google style userinfo endpoint.
type oauthStub struct {
	srv *httptest.Server

	mu        sync.Mutex
	exchanges int
	refreshes int
	profile   map[string]any
}

func newOAuthStub(t *testing.T) *oauthStub {
	t.Helper()
	st := &oauthStub{profile: map[string]any{
		"sub":            "g-100",
		"email":          "ann@example.com",
		"email_verified": true,
		"name":           "Ann",
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]any{"token_type": "Bearer", "expires_in": 3600}

		st.mu.Lock()
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			st.exchanges++
			resp["access_token"] = "access-1"
			resp["refresh_token"] = "refresh-1"
		case "refresh_token":
			st.refreshes++
			resp["access_token"] = "access-2"
		}
		st.mu.Unlock()

		if r.Form.Get("code") == "bad-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st.profile)
	})

	st.srv = httptest.NewServer(mux)
	t.Cleanup(st.srv.Close)
	return st
}

func (st *oauthStub) setProfile(sub, email string, verified bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.profile = map[string]any{"sub": sub, "email": email, "email_verified": verified, "name": "Stub User"}
}

func (st *oauthStub) exchangeCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.exchanges
}

func (st *oauthStub) googleProvider() *GoogleProvider {
	p := NewGoogleProvider("client-id", "client-secret", "http://localhost/oauth/google/callback")
	p.Config().Endpoint = oauth2.Endpoint{
		AuthURL:   st.srv.URL + "/auth",
		TokenURL:  st.srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.UserInfoURL = st.srv.URL + "/userinfo"
	return p
}

// --- AuthService harness ---

type authHarness struct {
	svc       *AuthService
	store     *memstore.Store
	mailer    *fakeMailer
	stub      *oauthStub
	tokens    *TokenService
	twoFactor *TwoFactorService
	oauth     *OAuthService
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	store := memstore.New()
	rm := repomanager.NewMemoryRepositoryManager(store)
	enc := newTestEncryption(t)
	hasher := newTestHasher(t)
	stub := newOAuthStub(t)

	tokens := NewTokenService(nil, rm, time.Hour, 24*time.Hour)
	tf := NewTwoFactorService(nil, rm, enc, hasher, "Numeria")
	oauthSvc := NewOAuthService(nil, rm, enc, 5*time.Second, stub.googleProvider())
	mailer := &fakeMailer{}

	svc := NewAuthService(AuthDeps{
		Transactor:  store,
		Repos:       rm,
		Hasher:      hasher,
		Tokens:      tokens,
		TwoFactor:   tf,
		OAuth:       oauthSvc,
		Mailer:      mailer,
		SecurityLog: NewSecurityLogWriter(nil, rm, logging.Nop(), nil),
		Logger:      logging.Nop(),
	}, AuthConfig{
		SessionTTL:      30 * 24 * time.Hour,
		OAuthStateTTL:   10 * time.Minute,
		StateSigningKey: []byte("state-signing-key"),
		EmailTimeout:    time.Second,
	})
	t.Cleanup(svc.Wait)

	return &authHarness{
		svc:       svc,
		store:     store,
		mailer:    mailer,
		stub:      stub,
		tokens:    tokens,
		twoFactor: tf,
		oauth:     oauthSvc,
	}
}

func (h *authHarness) register(t *testing.T, email, password string) *Authenticated {
	t.Helper()
	res, err := h.svc.Register(context.Background(), email, password, "Test User", "")
	require.NoError(t, err)
	h.svc.Wait()
	return res
}

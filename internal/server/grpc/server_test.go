package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/mail"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/numeria/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

// newAuthService builds an AuthService on the in-memory store with no OAuth
// providers and no exporter.
func newAuthService(t *testing.T) (*services.AuthService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	rm := repomanager.NewMemoryRepositoryManager(store)
	enc, err := services.NewEncryptionService("transport-test-secret")
	require.NoError(t, err)
	hasher, err := services.NewPasswordHasher(bcrypt.MinCost, 0)
	require.NoError(t, err)

	svc := services.NewAuthService(services.AuthDeps{
		Transactor:  store,
		Repos:       rm,
		Hasher:      hasher,
		Tokens:      services.NewTokenService(nil, rm, time.Hour, 24*time.Hour),
		TwoFactor:   services.NewTwoFactorService(nil, rm, enc, hasher, "Numeria"),
		OAuth:       services.NewOAuthService(nil, rm, enc, time.Second),
		Mailer:      mail.NewLogSender(logging.Nop()),
		SecurityLog: services.NewSecurityLogWriter(nil, rm, logging.Nop(), nil),
		Logger:      logging.Nop(),
	}, services.AuthConfig{
		SessionTTL:      time.Hour,
		OAuthStateTTL:   time.Minute,
		StateSigningKey: []byte("state-key"),
		EmailTimeout:    time.Second,
	})
	t.Cleanup(svc.Wait)
	return svc, store
}

// testClient talks to a GRPCServer over an in-process listener.
type testClient struct {
	conn *grpc.ClientConn
}

func newTestClient(t *testing.T, auth AuthAPI) *testClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer("bufnet", logging.Nop(), auth).NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{conn: conn}
}

// call invokes method, attaching sessionID as metadata when it is set.
func (c *testClient) call(sessionID, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sessionID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.SessionHeaderName, sessionID)
	}
	return c.conn.Invoke(ctx, FullMethod(method), req, resp)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	svc, _ := newAuthService(t)
	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

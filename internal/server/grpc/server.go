// Package grpc exposes AuthService over gRPC. Messages are plain structs
// encoded with a JSON codec; authenticated methods expect the session id in
// the session_id metadata key.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/services"
	"google.golang.org/grpc"
)

// AuthAPI is the part of services.AuthService served over gRPC.
type AuthAPI interface {
	Register(ctx context.Context, email, password, name, lang string) (*services.Authenticated, error)
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
	CompleteTwoFactorLogin(ctx context.Context, pendingToken, code string) (*services.Authenticated, error)
	ValidateSession(ctx context.Context, sessionID string) (*models.User, *models.Session, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)

	RequestPasswordReset(ctx context.Context, email string) string
	ConfirmPasswordReset(ctx context.Context, token, newPassword, currentSessionID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, currentSessionID string) error
	SendVerificationEmail(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, token string) error

	Setup2FA(ctx context.Context, userID string) (*models.TwoFactorSetup, error)
	Confirm2FA(ctx context.Context, userID, secret string, backupCodes []string, code string) error
	Disable2FA(ctx context.Context, userID, password string) error
	RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error)
	RemainingBackupCodes(ctx context.Context, userID string) (int, error)

	StartOAuth(ctx context.Context, provider string) (string, string, error)
	StartOAuthLink(ctx context.Context, userID, provider string) (string, string, error)
	HandleOAuthCallback(ctx context.Context, provider, code, state, expectedState string) (services.LoginResult, error)
	LinkOAuthProvider(ctx context.Context, userID, provider, code, state, expectedState string) error
	UnlinkOAuthProvider(ctx context.Context, userID, provider, password string) error
	LinkedProviders(ctx context.Context, userID string) ([]string, error)
	RefreshLinkedProvider(ctx context.Context, userID, provider string) (time.Time, error)

	ExportSecurityLog(ctx context.Context, adminID, userID string) (string, error)
}

type GRPCServer struct {
	address string
	auth    AuthAPI
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, auth AuthAPI) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    auth,
	}
}

// NewServer builds a grpc.Server with the interceptors installed and the
// auth service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.sessionInterceptor))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

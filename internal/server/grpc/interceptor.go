package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	userKey    ctxKey = "user"
	sessionKey ctxKey = "session"
)

// sessionIDFromMetadata returns the session id sent by the client, if any.
func sessionIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.SessionHeaderName); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// principal returns the user and session attached by sessionInterceptor.
func principal(ctx context.Context) (*models.User, *models.Session, error) {
	u, ok := ctx.Value(userKey).(*models.User)
	if !ok {
		return nil, nil, status.Error(codes.Unauthenticated, "missing session")
	}
	sess, _ := ctx.Value(sessionKey).(*models.Session)
	return u, sess, nil
}

func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	sessionID := sessionIDFromMetadata(ctx)
	if sessionID == "" {
		return nil, status.Error(codes.Unauthenticated, "missing session")
	}
	user, sess, err := s.auth.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	ctx = context.WithValue(ctx, userKey, user)
	ctx = context.WithValue(ctx, sessionKey, sess)
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error(ctx, "request failed", args...)
	} else {
		s.logger.Debug(ctx, "request handled", args...)
	}
	return resp, err
}

package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrTokenInvalid, codes.InvalidArgument},
	{common.ErrTokenExpired, codes.InvalidArgument},
	{common.ErrInvalidOAuthState, codes.InvalidArgument},
	{common.ErrUnknownProvider, codes.InvalidArgument},

	{common.ErrorUnauthorized, codes.Unauthenticated},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrInvalidTwoFactorCode, codes.Unauthenticated},
	{common.ErrTwoFactorLoginExpired, codes.Unauthenticated},

	{common.ErrEmailTaken, codes.AlreadyExists},
	{common.ErrOAuthLinkedElsewhere, codes.AlreadyExists},

	{common.ErrEmailAlreadyVerified, codes.FailedPrecondition},
	{common.ErrTwoFactorAlreadyEnabled, codes.FailedPrecondition},
	{common.ErrTwoFactorNotEnabled, codes.FailedPrecondition},
	{common.ErrOAuthNotLinked, codes.FailedPrecondition},
	{common.ErrOAuthEmailUnverified, codes.FailedPrecondition},
	{common.ErrLastAuthMethod, codes.FailedPrecondition},
	{common.ErrPasswordRequired, codes.FailedPrecondition},
	{services.ErrExportDisabled, codes.FailedPrecondition},

	{common.ErrRateLimited, codes.ResourceExhausted},
	{common.ErrForbidden, codes.PermissionDenied},
	{common.ErrorNotFound, codes.NotFound},
}

// toStatus maps a service error to a gRPC status. Known errors keep their
// message; anything else is logged and reported as a bare internal error.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return status.Error(e.code, err.Error())
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	s.logger.Error(ctx, "internal error", "error", err)
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}

package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "numeria.auth.v1.AuthService"

// Method names.
const (
	MethodRegister              = "Register"
	MethodLogin                 = "Login"
	MethodVerify2FALogin        = "Verify2FALogin"
	MethodRequestPasswordReset  = "RequestPasswordReset"
	MethodConfirmPasswordReset  = "ConfirmPasswordReset"
	MethodVerifyEmail           = "VerifyEmail"
	MethodStartOAuth            = "StartOAuth"
	MethodOAuthCallback         = "OAuthCallback"
	MethodMe                    = "Me"
	MethodLogout                = "Logout"
	MethodLogoutAll             = "LogoutAll"
	MethodChangePassword        = "ChangePassword"
	MethodSendVerificationEmail = "SendVerificationEmail"
	MethodSetup2FA              = "Setup2FA"
	MethodConfirm2FA            = "Confirm2FA"
	MethodDisable2FA            = "Disable2FA"
	MethodRegenerateBackupCodes = "RegenerateBackupCodes"
	MethodRemainingBackupCodes  = "RemainingBackupCodes"
	MethodStartOAuthLink        = "StartOAuthLink"
	MethodLinkOAuthProvider     = "LinkOAuthProvider"
	MethodUnlinkOAuthProvider   = "UnlinkOAuthProvider"
	MethodLinkedProviders       = "LinkedProviders"
	MethodRefreshOAuthToken     = "RefreshOAuthToken"
	MethodExportSecurityLog     = "ExportSecurityLog"
)

// FullMethod returns the wire path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// publicMethods run without a session.
var publicMethods = map[string]bool{
	FullMethod(MethodRegister):             true,
	FullMethod(MethodLogin):                true,
	FullMethod(MethodVerify2FALogin):       true,
	FullMethod(MethodRequestPasswordReset): true,
	FullMethod(MethodConfirmPasswordReset): true,
	FullMethod(MethodVerifyEmail):          true,
	FullMethod(MethodStartOAuth):           true,
	FullMethod(MethodOAuthCallback):        true,
}

// unary adapts a typed handler to grpc.MethodDesc, running it through the
// server's interceptor chain.
func unary[Req, Resp any](method string, call func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return call(s, ctx, r.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, (*GRPCServer).Register),
		unary(MethodLogin, (*GRPCServer).Login),
		unary(MethodVerify2FALogin, (*GRPCServer).Verify2FALogin),
		unary(MethodRequestPasswordReset, (*GRPCServer).RequestPasswordReset),
		unary(MethodConfirmPasswordReset, (*GRPCServer).ConfirmPasswordReset),
		unary(MethodVerifyEmail, (*GRPCServer).VerifyEmail),
		unary(MethodStartOAuth, (*GRPCServer).StartOAuth),
		unary(MethodOAuthCallback, (*GRPCServer).OAuthCallback),
		unary(MethodMe, (*GRPCServer).Me),
		unary(MethodLogout, (*GRPCServer).Logout),
		unary(MethodLogoutAll, (*GRPCServer).LogoutAll),
		unary(MethodChangePassword, (*GRPCServer).ChangePassword),
		unary(MethodSendVerificationEmail, (*GRPCServer).SendVerificationEmail),
		unary(MethodSetup2FA, (*GRPCServer).Setup2FA),
		unary(MethodConfirm2FA, (*GRPCServer).Confirm2FA),
		unary(MethodDisable2FA, (*GRPCServer).Disable2FA),
		unary(MethodRegenerateBackupCodes, (*GRPCServer).RegenerateBackupCodes),
		unary(MethodRemainingBackupCodes, (*GRPCServer).RemainingBackupCodes),
		unary(MethodStartOAuthLink, (*GRPCServer).StartOAuthLink),
		unary(MethodLinkOAuthProvider, (*GRPCServer).LinkOAuthProvider),
		unary(MethodUnlinkOAuthProvider, (*GRPCServer).UnlinkOAuthProvider),
		unary(MethodLinkedProviders, (*GRPCServer).LinkedProviders),
		unary(MethodRefreshOAuthToken, (*GRPCServer).RefreshOAuthToken),
		unary(MethodExportSecurityLog, (*GRPCServer).ExportSecurityLog),
	},
	Metadata: "numeria/auth.proto",
}

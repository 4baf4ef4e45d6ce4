package grpc

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/server/services"
)

func loginResponse(res services.LoginResult) *LoginResponse {
	switch r := res.(type) {
	case *services.Authenticated:
		return &LoginResponse{SessionID: r.Session.ID, ExpiresAt: r.Session.ExpiresAt, User: userFrom(r.User)}
	case *services.TwoFactorRequired:
		return &LoginResponse{TwoFactorRequired: true, UserID: r.UserID, PendingToken: r.PendingToken}
	}
	return &LoginResponse{}
}

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	res, err := s.auth.Register(ctx, req.Email, req.Password, req.Name, req.Lang)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "Registered", "user_id", res.User.ID)
	return loginResponse(res), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	res, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return loginResponse(res), nil
}

func (s *GRPCServer) Verify2FALogin(ctx context.Context, req *Verify2FALoginRequest) (*LoginResponse, error) {
	res, err := s.auth.CompleteTwoFactorLogin(ctx, req.PendingToken, req.Code)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return loginResponse(res), nil
}

func (s *GRPCServer) RequestPasswordReset(ctx context.Context, req *PasswordResetRequest) (*MessageResponse, error) {
	return &MessageResponse{Message: s.auth.RequestPasswordReset(ctx, req.Email)}, nil
}

func (s *GRPCServer) ConfirmPasswordReset(ctx context.Context, req *ConfirmPasswordResetRequest) (*Empty, error) {
	if err := s.auth.ConfirmPasswordReset(ctx, req.Token, req.NewPassword, sessionIDFromMetadata(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) VerifyEmail(ctx context.Context, req *VerifyEmailRequest) (*Empty, error) {
	if err := s.auth.VerifyEmail(ctx, req.Token); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) StartOAuth(ctx context.Context, req *ProviderRequest) (*StartOAuthResponse, error) {
	url, state, err := s.auth.StartOAuth(ctx, req.Provider)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &StartOAuthResponse{AuthorizationURL: url, State: state}, nil
}

func (s *GRPCServer) OAuthCallback(ctx context.Context, req *OAuthCallbackRequest) (*LoginResponse, error) {
	res, err := s.auth.HandleOAuthCallback(ctx, req.Provider, req.Code, req.State, req.ExpectedState)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return loginResponse(res), nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *Empty) (*User, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	return userFrom(u), nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	_, sess, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, sess.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) LogoutAll(ctx context.Context, _ *Empty) (*LogoutAllResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.auth.LogoutAll(ctx, u.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &LogoutAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*Empty, error) {
	u, sess, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.ChangePassword(ctx, u.ID, req.CurrentPassword, req.NewPassword, sess.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) SendVerificationEmail(ctx context.Context, _ *Empty) (*Empty, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.SendVerificationEmail(ctx, u.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Setup2FA(ctx context.Context, _ *Empty) (*Setup2FAResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	setup, err := s.auth.Setup2FA(ctx, u.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Setup2FAResponse{
		Secret:      setup.Secret,
		OTPAuthURL:  setup.OTPAuthURL,
		QRCode:      setup.QRCode,
		BackupCodes: setup.BackupCodes,
	}, nil
}

func (s *GRPCServer) Confirm2FA(ctx context.Context, req *Confirm2FARequest) (*Empty, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Confirm2FA(ctx, u.ID, req.Secret, req.BackupCodes, req.Code); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Disable2FA(ctx context.Context, req *PasswordRequest) (*Empty, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Disable2FA(ctx, u.ID, req.Password); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) RegenerateBackupCodes(ctx context.Context, req *CodeRequest) (*BackupCodesResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.auth.RegenerateBackupCodes(ctx, u.ID, req.Code)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &BackupCodesResponse{BackupCodes: codes, Remaining: len(codes)}, nil
}

func (s *GRPCServer) RemainingBackupCodes(ctx context.Context, _ *Empty) (*BackupCodesResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.auth.RemainingBackupCodes(ctx, u.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &BackupCodesResponse{Remaining: n}, nil
}

func (s *GRPCServer) StartOAuthLink(ctx context.Context, req *ProviderRequest) (*StartOAuthResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	url, state, err := s.auth.StartOAuthLink(ctx, u.ID, req.Provider)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &StartOAuthResponse{AuthorizationURL: url, State: state}, nil
}

func (s *GRPCServer) LinkOAuthProvider(ctx context.Context, req *OAuthCallbackRequest) (*Empty, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.LinkOAuthProvider(ctx, u.ID, req.Provider, req.Code, req.State, req.ExpectedState); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) UnlinkOAuthProvider(ctx context.Context, req *UnlinkRequest) (*Empty, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.UnlinkOAuthProvider(ctx, u.ID, req.Provider, req.Password); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) LinkedProviders(ctx context.Context, _ *Empty) (*ProvidersResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	providers, err := s.auth.LinkedProviders(ctx, u.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ProvidersResponse{Providers: providers}, nil
}

func (s *GRPCServer) RefreshOAuthToken(ctx context.Context, req *ProviderRequest) (*RefreshOAuthResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	expiresAt, err := s.auth.RefreshLinkedProvider(ctx, u.ID, req.Provider)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &RefreshOAuthResponse{Provider: req.Provider, ExpiresAt: expiresAt}, nil
}

func (s *GRPCServer) ExportSecurityLog(ctx context.Context, req *ExportRequest) (*ExportResponse, error) {
	u, _, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.auth.ExportSecurityLog(ctx, u.ID, req.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ExportResponse{URL: url}, nil
}

package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/auth"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const password = "correct-horse-1"

func register(t *testing.T, c *testClient, email string) *LoginResponse {
	t.Helper()
	var resp LoginResponse
	require.NoError(t, c.call("", MethodRegister, &RegisterRequest{Email: email, Password: password, Name: "Ann"}, &resp))
	require.NotEmpty(t, resp.SessionID)
	return &resp
}

func assertCode(t *testing.T, want codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), status.Convert(err).Message())
}

func TestRegisterLoginMe(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)

	reg := register(t, c, "ann@example.com")
	require.NotNil(t, reg.User)
	assert.Equal(t, "ann@example.com", reg.User.Email)
	assert.True(t, reg.User.HasPassword)
	assert.False(t, reg.User.EmailVerified)

	var login LoginResponse
	require.NoError(t, c.call("", MethodLogin, &LoginRequest{Email: "ANN@example.com", Password: password}, &login))
	assert.NotEmpty(t, login.SessionID)
	assert.False(t, login.TwoFactorRequired)

	var me User
	require.NoError(t, c.call(login.SessionID, MethodMe, &Empty{}, &me))
	assert.Equal(t, reg.User.ID, me.ID)

	var providers ProvidersResponse
	require.NoError(t, c.call(login.SessionID, MethodLinkedProviders, &Empty{}, &providers))
	assert.Empty(t, providers.Providers)
}

func TestErrorsMapToCodes(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)
	reg := register(t, c, "ann@example.com")

	err := c.call("", MethodRegister, &RegisterRequest{Email: "not-an-email", Password: password, Name: "x"}, &LoginResponse{})
	assertCode(t, codes.InvalidArgument, err)
	assert.Contains(t, status.Convert(err).Message(), "invalid email address")

	assertCode(t, codes.AlreadyExists,
		c.call("", MethodRegister, &RegisterRequest{Email: "ann@example.com", Password: password, Name: "x"}, &LoginResponse{}))

	err = c.call("", MethodLogin, &LoginRequest{Email: "ann@example.com", Password: "wrong-password"}, &LoginResponse{})
	assertCode(t, codes.Unauthenticated, err)
	assert.Equal(t, "Invalid email or password", status.Convert(err).Message())

	assertCode(t, codes.InvalidArgument, c.call("", MethodVerifyEmail, &VerifyEmailRequest{Token: "nope"}, &Empty{}))
	assertCode(t, codes.InvalidArgument, c.call("", MethodStartOAuth, &ProviderRequest{Provider: "google"}, &StartOAuthResponse{}))
	assertCode(t, codes.FailedPrecondition, c.call(reg.SessionID, MethodDisable2FA, &PasswordRequest{Password: password}, &Empty{}))
	assertCode(t, codes.PermissionDenied, c.call(reg.SessionID, MethodExportSecurityLog, &ExportRequest{UserID: reg.User.ID}, &ExportResponse{}))
}

func TestAuthenticatedMethodsRequireSession(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)

	err := c.call("", MethodMe, &Empty{}, &User{})
	assertCode(t, codes.Unauthenticated, err)
	assert.Equal(t, "missing session", status.Convert(err).Message())

	assertCode(t, codes.Unauthenticated, c.call("forged-session", MethodLogoutAll, &Empty{}, &LogoutAllResponse{}))
	assertCode(t, codes.Unauthenticated, c.call("", MethodRefreshOAuthToken, &ProviderRequest{Provider: "google"}, &RefreshOAuthResponse{}))
}

func TestRefreshOAuthToken_Errors(t *testing.T) {
	svc, store := newAuthService(t)
	c := newTestClient(t, svc)
	reg := register(t, c, "ann@example.com")

	assertCode(t, codes.InvalidArgument,
		c.call(reg.SessionID, MethodRefreshOAuthToken, &ProviderRequest{Provider: "google"}, &RefreshOAuthResponse{}))
	assert.NotContains(t, store.SecurityLogs().Events(reg.User.ID), common.EventOAuthTokenRefreshed)
}

func TestRequestPasswordReset_SameAnswer(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)
	register(t, c, "ann@example.com")

	var known, unknown MessageResponse
	require.NoError(t, c.call("", MethodRequestPasswordReset, &PasswordResetRequest{Email: "ann@example.com"}, &known))
	require.NoError(t, c.call("", MethodRequestPasswordReset, &PasswordResetRequest{Email: "ghost@example.com"}, &unknown))
	assert.Equal(t, known, unknown)
	assert.NotEmpty(t, known.Message)
}

func TestLogoutAndLogoutAll(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)
	reg := register(t, c, "ann@example.com")

	var second LoginResponse
	require.NoError(t, c.call("", MethodLogin, &LoginRequest{Email: "ann@example.com", Password: password}, &second))

	require.NoError(t, c.call(second.SessionID, MethodLogout, &Empty{}, &Empty{}))
	assertCode(t, codes.Unauthenticated, c.call(second.SessionID, MethodMe, &Empty{}, &User{}))

	var all LogoutAllResponse
	require.NoError(t, c.call(reg.SessionID, MethodLogoutAll, &Empty{}, &all))
	assert.EqualValues(t, 1, all.Revoked)
	assertCode(t, codes.Unauthenticated, c.call(reg.SessionID, MethodMe, &Empty{}, &User{}))
}

func TestTwoFactorFlow(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)
	reg := register(t, c, "ann@example.com")

	var setup Setup2FAResponse
	require.NoError(t, c.call(reg.SessionID, MethodSetup2FA, &Empty{}, &setup))
	require.NotEmpty(t, setup.Secret)
	require.Len(t, setup.BackupCodes, 10)
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, c.call(reg.SessionID, MethodConfirm2FA,
		&Confirm2FARequest{Secret: setup.Secret, BackupCodes: setup.BackupCodes, Code: code}, &Empty{}))

	// Enabling 2FA ends every session, including the one that did it.
	assertCode(t, codes.Unauthenticated, c.call(reg.SessionID, MethodMe, &Empty{}, &User{}))

	var login LoginResponse
	require.NoError(t, c.call("", MethodLogin, &LoginRequest{Email: "ann@example.com", Password: password}, &login))
	require.True(t, login.TwoFactorRequired)
	assert.Empty(t, login.SessionID)
	assert.Equal(t, reg.User.ID, login.UserID)
	require.NotEmpty(t, login.PendingToken)

	assertCode(t, codes.Unauthenticated,
		c.call("", MethodVerify2FALogin, &Verify2FALoginRequest{PendingToken: login.PendingToken, Code: "000000-bad"}, &LoginResponse{}))

	var done LoginResponse
	require.NoError(t, c.call("", MethodVerify2FALogin, &Verify2FALoginRequest{PendingToken: login.PendingToken, Code: setup.BackupCodes[0]}, &done))
	require.NotEmpty(t, done.SessionID)
	assert.True(t, done.User.TwoFactorEnabled)

	var left BackupCodesResponse
	require.NoError(t, c.call(done.SessionID, MethodRemainingBackupCodes, &Empty{}, &left))
	assert.Equal(t, 9, left.Remaining)
}

func enableTwoFactor(t *testing.T, c *testClient, sessionID string) Setup2FAResponse {
	t.Helper()
	var setup Setup2FAResponse
	require.NoError(t, c.call(sessionID, MethodSetup2FA, &Empty{}, &setup))
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, c.call(sessionID, MethodConfirm2FA,
		&Confirm2FARequest{Secret: setup.Secret, BackupCodes: setup.BackupCodes, Code: code}, &Empty{}))
	return setup
}

func TestVerify2FALogin_RequiresPasswordStep(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)
	reg := register(t, c, "victim@example.com")
	setup := enableTwoFactor(t, c, reg.SessionID)

	forged, err := auth.GeneratePendingLoginToken(reg.User.ID, "password", []byte("guessed-key"), time.Minute)
	require.NoError(t, err)

	for name, pending := range map[string]string{
		"no token":    "",
		"user id":     reg.User.ID,
		"foreign key": forged,
	} {
		t.Run(name, func(t *testing.T) {
			var resp LoginResponse
			err := c.call("", MethodVerify2FALogin, &Verify2FALoginRequest{PendingToken: pending, Code: setup.BackupCodes[3]}, &resp)
			assertCode(t, codes.Unauthenticated, err)
			assert.Empty(t, resp.SessionID)
		})
	}

	// The backup code was never checked, so it still works after a real login.
	var login LoginResponse
	require.NoError(t, c.call("", MethodLogin, &LoginRequest{Email: "victim@example.com", Password: password}, &login))
	var done LoginResponse
	require.NoError(t, c.call("", MethodVerify2FALogin, &Verify2FALoginRequest{PendingToken: login.PendingToken, Code: setup.BackupCodes[3]}, &done))
	assert.NotEmpty(t, done.SessionID)
}

func TestOAuthCallback_BadStateIsInvalidArgument(t *testing.T) {
	svc, _ := newAuthService(t)
	c := newTestClient(t, svc)

	err := c.call("", MethodOAuthCallback, &OAuthCallbackRequest{Provider: "google", Code: "c", State: "a", ExpectedState: "b"}, &LoginResponse{})
	assertCode(t, codes.InvalidArgument, err)
	assert.Equal(t, "Invalid OAuth state parameter", status.Convert(err).Message())
}

func TestMe_WithoutInterceptorIsUnauthenticated(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), nil)
	_, err := s.Me(context.Background(), &Empty{})
	assertCode(t, codes.Unauthenticated, err)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/auth"
	"github.com/dmitrijs2005/numeria/internal/server/mail"
	"github.com/dmitrijs2005/numeria/internal/server/metrics"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
)

const (
	sessionIDSize = 32

	verificationEmailLimit  = 3
	verificationEmailWindow = time.Hour

	twoFactorFailureLimit  = 5
	twoFactorFailureWindow = 15 * time.Minute

	defaultPendingLoginTTL = 5 * time.Minute
)

// PasswordResetMessage is returned by RequestPasswordReset whether or not
// the address belongs to an account.
const PasswordResetMessage = "If an account exists for that email, a password reset link has been sent."

// LoginResult is the outcome of a successful first login step. It is either
// *Authenticated or *TwoFactorRequired.
type LoginResult interface {
	loginResult()
}

// Authenticated carries the new session of a completed login.
type Authenticated struct {
	User    *models.User
	Session *models.Session
}

// TwoFactorRequired means the password (or provider) check passed and the
// caller must finish with CompleteTwoFactorLogin, presenting PendingToken.
// No session exists yet.
type TwoFactorRequired struct {
	UserID       string
	PendingToken string
}

func (*Authenticated) loginResult()     {}
func (*TwoFactorRequired) loginResult() {}

// AuthConfig holds AuthService settings.
type AuthConfig struct {
	SessionTTL      time.Duration
	OAuthStateTTL   time.Duration
	StateSigningKey []byte
	// PendingLoginTTL bounds the gap between the first and second factor.
	PendingLoginTTL time.Duration
	DefaultLanguage string
	// EmailTimeout bounds each asynchronous email send.
	EmailTimeout time.Duration
}

// AuthDeps are the collaborators of AuthService. Exporter and Metrics may be
// nil.
type AuthDeps struct {
	DB          dbx.DBTX
	Transactor  dbx.Transactor
	Repos       repomanager.RepositoryManager
	Hasher      *PasswordHasher
	Tokens      *TokenService
	TwoFactor   *TwoFactorService
	OAuth       *OAuthService
	Mailer      mail.EmailSender
	SecurityLog *SecurityLogWriter
	Exporter    *SecurityLogExporter
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}

// AuthService orchestrates registration, login, password reset, email
// verification, 2FA and OAuth flows on top of the other services.
type AuthService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	hasher      *PasswordHasher
	tokens      *TokenService
	twoFactor   *TwoFactorService
	oauth       *OAuthService
	mailer      mail.EmailSender
	audit       *SecurityLogWriter
	exporter    *SecurityLogExporter
	metrics     *metrics.Metrics
	logger      logging.Logger
	validator   *inputValidator
	cfg         AuthConfig
	now         func() time.Time

	emails sync.WaitGroup
}

// NewAuthService wires an AuthService.
func NewAuthService(d AuthDeps, cfg AuthConfig) *AuthService {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = common.DefaultLanguage
	}
	if cfg.PendingLoginTTL <= 0 {
		cfg.PendingLoginTTL = defaultPendingLoginTTL
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthService{
		db:          d.DB,
		tx:          d.Transactor,
		repomanager: d.Repos,
		hasher:      d.Hasher,
		tokens:      d.Tokens,
		twoFactor:   d.TwoFactor,
		oauth:       d.OAuth,
		mailer:      d.Mailer,
		audit:       d.SecurityLog,
		exporter:    d.Exporter,
		metrics:     d.Metrics,
		logger:      logger.With("component", "auth"),
		validator:   newInputValidator(),
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until every pending email send has finished.
func (s *AuthService) Wait() {
	s.emails.Wait()
}

// sendEmail runs send in the background on a context detached from the
// request. Failures are logged only.
func (s *AuthService) sendEmail(ctx context.Context, kind mail.Kind, userID string, send func(ctx context.Context) error) {
	s.emails.Add(1)
	go func() {
		defer s.emails.Done()

		ctx := context.WithoutCancel(ctx)
		if s.cfg.EmailTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.EmailTimeout)
			defer cancel()
		}
		err := send(ctx)
		s.metrics.Email(string(kind), err == nil)
		if err != nil {
			s.logger.Error(ctx, "email delivery failed", "kind", kind, "user_id", userID, "error", err)
		}
	}()
}

func (s *AuthService) language(u *models.User) string {
	if u.PreferredLang != "" {
		return u.PreferredLang
	}
	return s.cfg.DefaultLanguage
}

func (s *AuthService) createSession(ctx context.Context, db dbx.DBTX, userID string) (*models.Session, error) {
	id, err := common.MakeRandURLToken(sessionIDSize)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := s.now()
	sess := &models.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err := s.repomanager.Sessions(db).Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *AuthService) getUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) countRecent(ctx context.Context, userID, event string, window time.Duration) (int64, error) {
	return s.repomanager.SecurityLogs(s.db).CountSince(ctx, userID, event, s.now().Add(-window))
}

// Register creates a password account, starts email verification and logs
// the user in.
func (s *AuthService) Register(ctx context.Context, email, password, name, lang string) (*Authenticated, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := s.validator.check(registrationInput{Email: email, Password: password, Name: name}); err != nil {
		return nil, err
	}
	if err := s.validator.checkPassword(password); err != nil {
		return nil, err
	}
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}
	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		PreferredLang: lang,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, user.ID, common.EventRegister, "method", "password")

	s.startEmailVerification(ctx, user)

	sess, err := s.createSession(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	return &Authenticated{User: user, Session: sess}, nil
}

// startEmailVerification mints a verification token and mails it. Errors are
// logged and not returned.
func (s *AuthService) startEmailVerification(ctx context.Context, u *models.User) {
	token, err := s.tokens.CreateEmailVerificationToken(ctx, u.ID)
	if err != nil {
		s.logger.Error(ctx, "create verification token failed", "user_id", u.ID, "error", err)
		return
	}
	to, lang := u.Email, s.language(u)
	s.sendEmail(ctx, mail.KindEmailVerification, u.ID, func(ctx context.Context) error {
		return s.mailer.SendEmailVerificationEmail(ctx, to, token, lang)
	})
	s.audit.Record(ctx, u.ID, common.EventVerificationEmailSent)
}

// Login checks email and password. Accounts with 2FA get a
// *TwoFactorRequired and no session.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		if err := s.hasher.CompareDummy(ctx, password); err != nil {
			return nil, err
		}
		s.metrics.Login("password", "invalid_credentials")
		if user != nil {
			s.audit.Record(ctx, user.ID, common.EventLoginFailed, "reason", "no_password")
		}
		return nil, common.ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.Login("password", "invalid_credentials")
		s.audit.Record(ctx, user.ID, common.EventLoginFailed, "reason", "wrong_password")
		return nil, common.ErrInvalidCredentials
	}
	return s.completeLogin(ctx, user, "password")
}

// completeLogin applies the checks shared by password and OAuth login once
// the first factor passed.
func (s *AuthService) completeLogin(ctx context.Context, user *models.User, method string) (LoginResult, error) {
	if user.IsBlocked {
		s.metrics.Login(method, "blocked")
		s.audit.Record(ctx, user.ID, common.EventLoginBlocked, "method", method)
		return nil, common.ErrInvalidCredentials
	}
	if user.TwoFactorEnabled {
		s.metrics.Login(method, "2fa_required")
		pending, err := auth.GeneratePendingLoginToken(user.ID, method, s.cfg.StateSigningKey, s.cfg.PendingLoginTTL)
		if err != nil {
			return nil, err
		}
		s.audit.Record(ctx, user.ID, common.EventLoginTwoFactorRequired, "method", method)
		return &TwoFactorRequired{UserID: user.ID, PendingToken: pending}, nil
	}

	sess, err := s.createSession(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.Login(method, "success")
	event := common.EventLoginSuccess
	if method != "password" {
		event = common.EventOAuthLogin
	}
	s.audit.Record(ctx, user.ID, event, "method", method)
	return &Authenticated{User: user, Session: sess}, nil
}

// CompleteTwoFactorLogin finishes a login that returned *TwoFactorRequired.
// pendingToken must be the one issued with it; without a valid one the code
// is never checked and common.ErrTwoFactorLoginExpired is returned.
func (s *AuthService) CompleteTwoFactorLogin(ctx context.Context, pendingToken, code string) (*Authenticated, error) {
	claims, err := auth.ParsePendingLoginToken(pendingToken, s.cfg.StateSigningKey)
	if err != nil {
		s.metrics.TwoFactor("unknown", false)
		return nil, err
	}
	return s.Verify2FALogin(ctx, claims.Subject, code)
}

// Verify2FALogin checks the second factor for userID and creates a session.
// It trusts that the first factor already passed for userID; network-facing
// callers go through CompleteTwoFactorLogin.
func (s *AuthService) Verify2FALogin(ctx context.Context, userID, code string) (*Authenticated, error) {
	failures, err := s.countRecent(ctx, userID, common.EventTwoFactorLoginFailed, twoFactorFailureWindow)
	if err != nil {
		return nil, err
	}
	if failures >= twoFactorFailureLimit {
		return nil, common.ErrRateLimited
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidTwoFactorCode
		}
		return nil, err
	}
	if user.IsBlocked || !user.TwoFactorEnabled {
		return nil, common.ErrInvalidTwoFactorCode
	}

	res, err := s.twoFactor.Verify2FACode(ctx, userID, code)
	if err != nil && !errors.Is(err, common.ErrTwoFactorNotEnabled) {
		return nil, err
	}
	if !res.Valid {
		s.metrics.TwoFactor("unknown", false)
		s.audit.Record(ctx, userID, common.EventTwoFactorLoginFailed)
		return nil, common.ErrInvalidTwoFactorCode
	}
	kind := "totp"
	if res.IsBackupCode {
		kind = "backup_code"
		s.audit.Record(ctx, userID, common.EventBackupCodeUsed)
	}
	s.metrics.TwoFactor(kind, true)

	sess, err := s.createSession(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, userID, common.EventTwoFactorLoginSuccess, "kind", kind)
	return &Authenticated{User: user, Session: sess}, nil
}

// ValidateSession resolves a session id to its user. Unknown, expired or
// blocked sessions yield common.ErrorUnauthorized.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.User, *models.Session, error) {
	if sessionID == "" {
		return nil, nil, common.ErrorUnauthorized
	}
	repo := s.repomanager.Sessions(s.db)
	sess, err := repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, err
	}
	if sess.Expired(s.now()) {
		if err := repo.Delete(ctx, sessionID); err != nil {
			s.logger.Warn(ctx, "delete expired session failed", "error", err)
		}
		return nil, nil, common.ErrorUnauthorized
	}
	user, err := s.getUser(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user.IsBlocked {
		return nil, nil, common.ErrorUnauthorized
	}
	return user, sess, nil
}

// Logout deletes one session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	repo := s.repomanager.Sessions(s.db)
	sess, err := repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	if err := repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.UserID, common.EventLogout)
	return nil
}

// LogoutAll deletes every session of userID and returns how many there were.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.repomanager.Sessions(s.db).DeleteByUser(ctx, userID, "")
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, userID, common.EventLogoutAll, "sessions", fmt.Sprint(n))
	return n, nil
}

// ExportSecurityLog uploads userID's security log and returns a short-lived
// download link. Only admins may call it.
func (s *AuthService) ExportSecurityLog(ctx context.Context, adminID, userID string) (string, error) {
	admin, err := s.getUser(ctx, adminID)
	if err != nil {
		return "", err
	}
	if !admin.IsAdmin {
		return "", common.ErrForbidden
	}
	if !s.exporter.Enabled() {
		return "", ErrExportDisabled
	}
	entries, err := s.repomanager.SecurityLogs(s.db).ListByUser(ctx, userID, 0)
	if err != nil {
		return "", err
	}
	url, err := s.exporter.Export(ctx, userID, entries)
	if err != nil {
		return "", err
	}
	s.audit.Record(ctx, adminID, common.EventSecurityLogExported, "subject_user_id", userID, "entries", fmt.Sprint(len(entries)))
	return url, nil
}

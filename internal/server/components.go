package server

import (
	"fmt"

	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/config"
	"github.com/dmitrijs2005/numeria/internal/server/mail"
	"github.com/dmitrijs2005/numeria/internal/server/metrics"
	"github.com/dmitrijs2005/numeria/internal/server/services"
)

// Components are the services built from a Config.
type Components struct {
	Hasher *services.PasswordHasher
	Tokens *services.TokenService
	OAuth  *services.OAuthService
	Auth   *services.AuthService
}

// oauthProviders returns the providers that have a client id configured.
func oauthProviders(cfg *config.Config) []services.OAuthProvider {
	var ps []services.OAuthProvider
	if c := cfg.Google; c.ClientID != "" {
		ps = append(ps, services.NewGoogleProvider(c.ClientID, c.ClientSecret, c.RedirectURL))
	}
	if c := cfg.GitHub; c.ClientID != "" {
		ps = append(ps, services.NewGitHubProvider(c.ClientID, c.ClientSecret, c.RedirectURL))
	}
	return ps
}

func newMailer(cfg *config.Config, logger logging.Logger) mail.EmailSender {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(logger.With("module", "mail"))
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		BaseURL:  cfg.BaseURL,
	}, logger.With("module", "mail"))
}

// NewComponents wires every service on top of st. m may be nil.
func NewComponents(cfg *config.Config, st *Storage, logger logging.Logger, m *metrics.Metrics) (*Components, error) {
	enc, err := services.NewEncryptionService(cfg.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("encryption init error: %w", err)
	}
	hasher, err := services.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return nil, err
	}

	db := st.DBTX()
	tokens := services.NewTokenService(db, st.Repos, cfg.PasswordResetTTL, cfg.EmailVerificationTTL)
	twoFactor := services.NewTwoFactorService(db, st.Repos, enc, hasher, cfg.TOTPIssuer)
	oauth := services.NewOAuthService(db, st.Repos, enc, cfg.OutboundTimeout, oauthProviders(cfg)...)

	var exporter *services.SecurityLogExporter
	if cfg.S3Bucket != "" {
		exporter = services.NewSecurityLogExporter(services.S3ExportConfig{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	}

	auth := services.NewAuthService(services.AuthDeps{
		DB:          db,
		Transactor:  st.Tx,
		Repos:       st.Repos,
		Hasher:      hasher,
		Tokens:      tokens,
		TwoFactor:   twoFactor,
		OAuth:       oauth,
		Mailer:      newMailer(cfg, logger),
		SecurityLog: services.NewSecurityLogWriter(db, st.Repos, logger.With("module", "security_log"), m),
		Exporter:    exporter,
		Metrics:     m,
		Logger:      logger,
	}, services.AuthConfig{
		SessionTTL:      cfg.SessionTTL,
		OAuthStateTTL:   cfg.OAuthStateTTL,
		StateSigningKey: []byte(cfg.StateSigningKey),
		DefaultLanguage: cfg.DefaultLanguage,
		EmailTimeout:    cfg.OutboundTimeout,
	})

	return &Components{Hasher: hasher, Tokens: tokens, OAuth: oauth, Auth: auth}, nil
}

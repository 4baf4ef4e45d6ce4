package mail

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/logging"
)

// LogSender records that an email would have been sent. It is selected when
// no SMTP host is configured. Tokens are never written to the log.
type LogSender struct {
	logger logging.Logger
}

// NewLogSender returns a LogSender writing to logger.
func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) record(ctx context.Context, kind Kind, lang string) error {
	s.logger.Info(ctx, "email delivery disabled, message dropped", "kind", string(kind), "lang", lang)
	return nil
}

func (s *LogSender) SendPasswordResetEmail(ctx context.Context, _, _, lang string) error {
	return s.record(ctx, KindPasswordReset, lang)
}

func (s *LogSender) SendEmailVerificationEmail(ctx context.Context, _, _, lang string) error {
	return s.record(ctx, KindEmailVerification, lang)
}

func (s *LogSender) Send2FAEnabledEmail(ctx context.Context, _, lang string) error {
	return s.record(ctx, KindTwoFactorEnabled, lang)
}

func (s *LogSender) Send2FADisabledEmail(ctx context.Context, _, lang string) error {
	return s.record(ctx, KindTwoFactorDisabled, lang)
}

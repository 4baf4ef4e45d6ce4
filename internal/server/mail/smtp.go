package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/sethvargo/go-retry"
)

// MaxAttempts is the number of delivery attempts before a send fails.
const MaxAttempts = 3

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers mail through an SMTP relay, retrying failed attempts
// with a linear backoff of step x attempt.
type SMTPSender struct {
	cfg    SMTPConfig
	logger logging.Logger
	send   sendFunc
	step   time.Duration
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg SMTPConfig, logger logging.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger, send: smtp.SendMail, step: time.Second}
}

// linearBackoff waits step, 2*step, ... between attempts and stops after
// MaxAttempts-1 retries.
func linearBackoff(step time.Duration) retry.Backoff {
	var attempt int64
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * step, false
	})
	return retry.WithMaxRetries(MaxAttempts-1, b)
}

func (s *SMTPSender) deliver(ctx context.Context, kind Kind, m Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	raw := buildMIME(s.cfg.From, m)

	attempt := 0
	err := retry.Do(ctx, linearBackoff(s.step), func(ctx context.Context) error {
		attempt++
		if err := s.send(addr, auth, s.cfg.From, []string{m.To}, raw); err != nil {
			s.logger.Warn(ctx, "email delivery attempt failed", "kind", string(kind), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	s.logger.Info(ctx, "email sent", "kind", string(kind), "attempts", attempt)
	return nil
}

func buildMIME(from string, m Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, to, token, lang string) error {
	link := Link(s.cfg.BaseURL, "/reset-password", token)
	return s.deliver(ctx, KindPasswordReset, Render(KindPasswordReset, to, lang, link))
}

func (s *SMTPSender) SendEmailVerificationEmail(ctx context.Context, to, token, lang string) error {
	link := Link(s.cfg.BaseURL, "/verify-email", token)
	return s.deliver(ctx, KindEmailVerification, Render(KindEmailVerification, to, lang, link))
}

func (s *SMTPSender) Send2FAEnabledEmail(ctx context.Context, to, lang string) error {
	return s.deliver(ctx, KindTwoFactorEnabled, Render(KindTwoFactorEnabled, to, lang, ""))
}

func (s *SMTPSender) Send2FADisabledEmail(ctx context.Context, to, lang string) error {
	return s.deliver(ctx, KindTwoFactorDisabled, Render(KindTwoFactorDisabled, to, lang, ""))
}

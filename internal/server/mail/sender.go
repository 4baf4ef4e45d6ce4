// Package mail delivers the transactional emails the auth flows trigger.
package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// EmailSender is the outbound email contract used by the auth services.
type EmailSender interface {
	SendPasswordResetEmail(ctx context.Context, to, token, lang string) error
	SendEmailVerificationEmail(ctx context.Context, to, token, lang string) error
	Send2FAEnabledEmail(ctx context.Context, to, lang string) error
	Send2FADisabledEmail(ctx context.Context, to, lang string) error
}

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Kind identifies one of the email templates.
type Kind string

const (
	KindPasswordReset     Kind = "password_reset"
	KindEmailVerification Kind = "email_verification"
	KindTwoFactorEnabled  Kind = "2fa_enabled"
	KindTwoFactorDisabled Kind = "2fa_disabled"
)

var subjects = map[string]map[Kind]string{
	"en": {
		KindPasswordReset:     "Reset your password",
		KindEmailVerification: "Verify your email address",
		KindTwoFactorEnabled:  "Two-factor authentication enabled",
		KindTwoFactorDisabled: "Two-factor authentication disabled",
	},
	"es": {
		KindPasswordReset:     "Restablece tu contraseña",
		KindEmailVerification: "Verifica tu correo electrónico",
		KindTwoFactorEnabled:  "Autenticación en dos pasos activada",
		KindTwoFactorDisabled: "Autenticación en dos pasos desactivada",
	},
}

func subject(kind Kind, lang string) string {
	if s, ok := subjects[lang][kind]; ok {
		return s
	}
	return subjects["en"][kind]
}

// Render builds the message for kind. link may be empty for notifications.
func Render(kind Kind, to, lang, link string) Message {
	var b strings.Builder
	switch kind {
	case KindPasswordReset:
		fmt.Fprintf(&b, "Use the link below to choose a new password. It expires in one hour.\n\n%s\n", link)
	case KindEmailVerification:
		fmt.Fprintf(&b, "Confirm your email address by opening the link below.\n\n%s\n", link)
	case KindTwoFactorEnabled:
		b.WriteString("Two-factor authentication is now enabled on your account. All other sessions were signed out.\n")
	case KindTwoFactorDisabled:
		b.WriteString("Two-factor authentication was disabled on your account. If this was not you, reset your password now.\n")
	}
	return Message{To: to, Subject: subject(kind, lang), Body: b.String()}
}

// Link joins baseURL, path and the token query parameter.
func Link(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

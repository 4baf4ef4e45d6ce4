package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Redacted replaces the value of any attribute whose key names a credential.
const Redacted = "[REDACTED]"

// sensitiveKeys match a key exactly or as a snake_case prefix/suffix, so
// "password_hash" and "reset_token" are covered as well.
var sensitiveKeys = []string{"password", "secret", "token", "code", "codes", "authorization", "session_id"}

// Sensitive reports whether values logged under key must be hidden.
func Sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if k == s || strings.HasPrefix(k, s+"_") || strings.HasSuffix(k, "_"+s) {
			return true
		}
	}
	return false
}

// redactArgs returns a copy of key/value args with credential values
// replaced. It walks args the way slog does: a string key takes the next
// value, an Attr stands alone.
func redactArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}
	out := make([]any, len(args))
	copy(out, args)
	for i := 0; i < len(out); i++ {
		switch k := out[i].(type) {
		case slog.Attr:
			out[i] = redactAttr(k)
		case string:
			if i+1 < len(out) {
				if Sensitive(k) {
					out[i+1] = Redacted
				}
				i++
			}
		}
	}
	return out
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		attrs := make([]slog.Attr, len(group))
		for i, ga := range group {
			attrs[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(attrs...)}
	}
	if Sensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// SlogLogger adapts *slog.Logger to Logger and redacts credential attributes.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, redactArgs(args)...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, redactArgs(args)...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, redactArgs(args)...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, redactArgs(args)...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(redactArgs(args)...)}
}

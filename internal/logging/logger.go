// Package logging defines the structured-logging interface used across the
// server. Two backends are provided: log/slog and zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key/value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs verbose diagnostics.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key/value pairs.
	With(args ...any) Logger
}

// Options selects and tunes a backend.
type Options struct {
	Backend string // "slog" (default) or "zap"
	Format  string // "json" (default) or "text"
	Level   string // "debug", "info" (default), "warn", "error"
}

// New builds a Logger writing to w according to opts.
func New(w io.Writer, opts Options) (Logger, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(defaultLevel(opts.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		ho := &slog.HandlerOptions{Level: lvl}
		var h slog.Handler
		if strings.EqualFold(opts.Format, "text") {
			h = slog.NewTextHandler(w, ho)
		} else {
			h = slog.NewJSONHandler(w, ho)
		}
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		return newZapLogger(w, opts)
	default:
		return nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func defaultLevel(l string) string {
	if l == "" {
		return "info"
	}
	return l
}

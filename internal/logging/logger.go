// Package logging defines the structured-logging interface used across
// cardkeeper and its slog and zap implementations.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "card updated", "card_id", id, "version", v)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Formats accepted by New.
const (
	FormatJSON = "json"
	FormatText = "text"
)

type attrsKey struct{}

// WithAttrs returns a context whose key-value pairs are added to every entry
// logged with it, after any pairs already attached to ctx.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	prev := attrsFrom(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]any)
	return attrs
}

// withContext prepends the context attributes to args.
func withContext(ctx context.Context, args []any) []any {
	attrs := attrsFrom(ctx)
	if len(attrs) == 0 {
		return args
	}
	return append(append(make([]any, 0, len(attrs)+len(args)), attrs...), args...)
}

// New returns a zap-backed JSON logger for FormatJSON and a slog text logger
// otherwise.
func New(format string, w io.Writer) Logger {
	if format == FormatJSON {
		return NewZapLogger(w)
	}
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, nil)))
}

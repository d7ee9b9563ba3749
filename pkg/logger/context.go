package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const loggerKey ctxKey = iota

// WithContext stores a request-scoped logger in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// From returns the logger stored in ctx, falling back to the process logger.
// Trace ids of the active span are attached when present.
func From(ctx context.Context) *slog.Logger {
	l := L()
	if v, ok := ctx.Value(loggerKey).(*slog.Logger); ok && v != nil {
		l = v
	}
	if attrs := AttrsFromCtx(ctx); len(attrs) > 0 {
		args := make([]any, len(attrs))
		for i, a := range attrs {
			args[i] = a
		}
		l = l.With(args...)
	}
	return l
}

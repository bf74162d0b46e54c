package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithOperation tags the context logger with the auth flow being run, so every
// request made on behalf of that flow carries the same "flow" attribute.
func WithOperation(ctx context.Context, flow string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("flow", flow))
}

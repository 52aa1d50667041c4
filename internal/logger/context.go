package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is the private key type for storing the logger in a context.
type contextKey struct{}

// ToContext returns a child context carrying l.
func ToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}

	return global
}

// WithName returns a context whose logger has name appended to its name.
func WithName(ctx context.Context, name string) context.Context {
	return ToContext(ctx, FromContext(ctx).Named(name))
}

// WithKV returns a context whose logger always emits the given key-value pair.
func WithKV(ctx context.Context, key string, value any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(key, value))
}

// WithFields returns a context whose logger always emits the given key-value pairs.
func WithFields(ctx context.Context, kvs ...any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(kvs...))
}

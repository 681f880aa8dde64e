package xlog

import (
	"context"
)

var (
	// C is a short alias of FromContext, for call sites like xlog.C(ctx).Infof.
	C = FromContext
)

type contextKey struct{}

// FromContext returns the Logger carried by the context, falling back to the
// default logger when none was injected.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		logger = Default()
	}
	return logger
}

// WithContext derives a child context whose Logger carries the given
// attributes in every record.
func WithContext(ctx context.Context, args ...any) context.Context {
	logger := FromContext(ctx)
	return context.WithValue(ctx, contextKey{}, logger.With(args...))
}

package xcache

import (
	"context"

	"github.com/wuxler/upshift/pkg/util/xgeneric"
)

// NewDiscard returns a new cache implementation which discards all operations.
func NewDiscard[T any]() Cache[T] {
	return discardCacheImpl[T]{}
}

type discardCacheImpl[T any] struct {
}

// Get always reports a miss unless a loader is provided.
func (s discardCacheImpl[T]) Get(ctx context.Context, key string, options ...Option[T]) (T, bool) {
	o := MakeOptions(options...)
	if value, ok := o.Loader(ctx, key); ok {
		return value, true
	}
	return xgeneric.ZeroValue[T](), false
}

// Set discards the value.
func (s discardCacheImpl[T]) Set(_ context.Context, key string, value T, options ...Option[T]) {
}

// Delete is a no-op.
func (s discardCacheImpl[T]) Delete(_ context.Context, key string) {
}

package xcache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wuxler/upshift/pkg/util/xcache"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := xcache.NewMemory[string]()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	cache.Set(ctx, "key", "value")
	got, ok := cache.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	cache.Delete(ctx, "key")
	_, ok = cache.Get(ctx, "key")
	assert.False(t, ok)
}

func TestMemoryCache_Loader(t *testing.T) {
	ctx := context.Background()
	cache := xcache.NewMemory[int]()

	loads := 0
	loader := xcache.WithLoader(func(_ context.Context, key string) (int, bool) {
		loads++
		return 42, true
	})

	got, ok := cache.Get(ctx, "answer", loader)
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	// Loaded values stick.
	got, ok = cache.Get(ctx, "answer", loader)
	assert.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, loads)
}

func TestDiscardCache(t *testing.T) {
	ctx := context.Background()
	cache := xcache.NewDiscard[string]()

	cache.Set(ctx, "key", "value")
	_, ok := cache.Get(ctx, "key")
	assert.False(t, ok)

	got, ok := cache.Get(ctx, "key", xcache.WithLoader(func(_ context.Context, _ string) (string, bool) {
		return "loaded", true
	}))
	assert.True(t, ok)
	assert.Equal(t, "loaded", got)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxSize int, ttl time.Duration) *CacheManager {
	t.Helper()
	m := NewManager(&config.CacheConfig{
		Enabled: true,
		Backend: "memory",
		MaxSize: maxSize,
		TTL:     ttl,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerSetGet(t *testing.T) {
	m := newTestManager(t, 10, time.Minute)
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrCacheMiss))

	require.NoError(t, m.Set(ctx, "k", `{"calories":500}`))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"calories":500}`, got)

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestManagerExpiry(t *testing.T) {
	m := newTestManager(t, 10, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v"))
	time.Sleep(5 * time.Millisecond)

	_, err := m.Get(ctx, "k")
	assert.True(t, errors.Is(err, common.ErrCacheMiss))
}

func TestManagerEvictsLeastUsed(t *testing.T) {
	m := newTestManager(t, 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1"))
	require.NoError(t, m.Set(ctx, "b", "2"))
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", "3"))

	_, err = m.Get(ctx, "b")
	assert.True(t, errors.Is(err, common.ErrCacheMiss))
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := newTestManager(t, 100, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "shared", "v")
			_, _ = m.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("p", "img"), Key("p", "img"))
	assert.NotEqual(t, Key("p", "img"), Key("p", "img2"))
	assert.Contains(t, Key("p", ""), "text:")
	assert.Contains(t, Key("p", "img"), "multimodal:")
}

func TestNewDisabled(t *testing.T) {
	store, err := New(&config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, store)
}

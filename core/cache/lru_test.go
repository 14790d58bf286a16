package cache_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/core/cache"
)

func TestLRUCache(t *testing.T) {
	t.Parallel()

	t.Run("put and get", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](4)
		c.Put("a", 1)
		c.Put("b", 2)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, c.Len())

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](2)
		var evicted []string
		c.SetEvictCallback(func(key string, _ int) { evicted = append(evicted, key) })

		c.Put("a", 1)
		c.Put("b", 2)
		_, _ = c.Get("a") // refresh a so b is the eviction victim
		c.Put("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)
		_, ok = c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, []string{"b"}, evicted)
	})

	t.Run("update moves entry to front", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](2)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("a", 10)
		c.Put("c", 3)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 10, v)
		_, ok = c.Get("b")
		assert.False(t, ok)
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](2)
		c.Put("a", 1)

		v, ok := c.Remove("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		_, ok = c.Remove("a")
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRUCache[string, int](2)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})
}

func TestLRUCacheTTL(t *testing.T) {
	t.Parallel()

	t.Run("expired entries are absent", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		c := cache.NewLRUCacheWithClock[string, string](4, clock)
		c.PutWithTTL("cred", "hash", 5*time.Minute)

		v, ok := c.Get("cred")
		require.True(t, ok)
		assert.Equal(t, "hash", v)

		clock.Advance(5 * time.Minute)
		_, ok = c.Get("cred")
		assert.False(t, ok)
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		c := cache.NewLRUCacheWithClock[string, string](4, clock)
		c.PutWithTTL("k", "v", time.Minute)

		clock.Advance(time.Minute - time.Nanosecond)
		_, ok := c.Get("k")
		assert.True(t, ok)

		clock.Advance(time.Nanosecond)
		_, ok = c.Get("k")
		assert.False(t, ok)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		c := cache.NewLRUCacheWithClock[string, string](4, clock)
		c.Put("k", "v")

		clock.Advance(24 * time.Hour)
		_, ok := c.Get("k")
		assert.True(t, ok)
	})

	t.Run("remove of expired entry reports absent", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		c := cache.NewLRUCacheWithClock[string, string](4, clock)
		c.PutWithTTL("k", "v", time.Second)
		clock.Advance(2 * time.Second)

		_, ok := c.Remove("k")
		assert.False(t, ok)
	})
}

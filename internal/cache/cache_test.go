package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobfetch/internal/cache"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCache(t *testing.T, capacity int, ttl time.Duration) (*cache.Cache[string], *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	c, err := cache.New[string](cache.Config{Capacity: capacity, DefaultTTL: ttl}, clk)
	require.NoError(t, err)
	return c, clk
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	_, err := cache.New[string](cache.Config{Capacity: 0, DefaultTTL: time.Minute}, clk)
	require.Error(t, err)
	_, err = cache.New[string](cache.Config{Capacity: 10, DefaultTTL: 0}, clk)
	require.Error(t, err)
	_, err = cache.New[string](cache.Config{Capacity: 10, DefaultTTL: time.Minute}, nil)
	require.Error(t, err)
}

func TestGetMissThenHit(t *testing.T) {
	t.Parallel()

	c, clk := newCache(t, 4, time.Minute)

	_, _, ok := c.Get("a")
	require.False(t, ok)

	c.Set("a", "payload")
	clk.Advance(10 * time.Second)

	got, age, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "payload", got)
	require.Equal(t, 10*time.Second, age)

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.InDelta(t, 0.5, stats.HitRate, 1e-9)
	require.Equal(t, 1, stats.Size)
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	t.Parallel()

	c, clk := newCache(t, 4, time.Minute)
	c.Set("a", "payload")

	clk.Advance(time.Minute)

	_, _, ok := c.Get("a")
	require.False(t, ok, "entry at exactly ttl must be expired")
	require.Equal(t, 0, c.Len(), "expired entry must be removed on read")

	stats := c.Stats()
	require.Equal(t, uint64(0), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
}

func TestCapacityNeverExceeded(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, 3, time.Minute)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
		require.LessOrEqual(t, c.Len(), 3)
	}
	require.Equal(t, 3, c.Len())
}

func TestEvictionPrefersLRUVictim(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, 3, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	// Touch "a" so "b" becomes the LRU victim.
	_, _, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", "4")

	_, _, ok = c.Get("b")
	require.False(t, ok, "lru victim should be evicted")
	_, _, ok = c.Get("a")
	require.True(t, ok)
	_, _, ok = c.Get("c")
	require.True(t, ok)
	_, _, ok = c.Get("d")
	require.True(t, ok)
}

func TestEvictionPrefersExpiredOverLRU(t *testing.T) {
	t.Parallel()

	c, clk := newCache(t, 3, time.Minute)
	c.Set("old", "1")
	clk.Advance(30 * time.Second)
	c.Set("mid", "2")
	clk.Advance(20 * time.Second)
	c.Set("new", "3")

	// "old" expires; "mid" and "new" are still live. Even though "old" was
	// written first and "mid" is next in LRU order, the expired entry goes.
	clk.Advance(15 * time.Second)
	c.Set("extra", "4")

	_, _, ok := c.Get("old")
	require.False(t, ok)
	_, _, ok = c.Get("mid")
	require.True(t, ok)
	_, _, ok = c.Get("new")
	require.True(t, ok)
	_, _, ok = c.Get("extra")
	require.True(t, ok)
}

func TestSetExistingKeyRefreshes(t *testing.T) {
	t.Parallel()

	c, clk := newCache(t, 2, time.Minute)
	c.Set("a", "v1")
	clk.Advance(50 * time.Second)

	c.Set("a", "v2")
	clk.Advance(30 * time.Second)

	got, age, ok := c.Get("a")
	require.True(t, ok, "rewrite must reset expiry")
	require.Equal(t, "v2", got)
	require.Equal(t, 30*time.Second, age)
	require.Equal(t, 1, c.Len())
}

func TestSetTTLOverride(t *testing.T) {
	t.Parallel()

	c, clk := newCache(t, 2, time.Minute)
	c.SetTTL("a", "v", 5*time.Second)

	clk.Advance(4 * time.Second)
	_, _, ok := c.Get("a")
	require.True(t, ok)

	clk.Advance(time.Second)
	_, _, ok = c.Get("a")
	require.False(t, ok)
}

func TestInvalidateAndClear(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, 4, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	_, _, _ = c.Get("a")
	_, _, _ = c.Get("missing")

	require.True(t, c.Invalidate("a"))
	require.False(t, c.Invalidate("a"))

	before := c.Stats()
	c.Clear()
	after := c.Stats()

	require.Equal(t, 0, after.Size)
	require.Equal(t, before.Hits, after.Hits, "clear must not reset hit counter")
	require.Equal(t, before.Misses, after.Misses, "clear must not reset miss counter")
}

func TestKeysListsLiveEntries(t *testing.T) {
	t.Parallel()

	c, clk := newCache(t, 4, time.Minute)
	c.Set("a", "1")
	clk.Advance(10 * time.Second)
	c.Set("b", "2")
	_, _, _ = c.Get("a")
	_, _, _ = c.Get("a")

	keys := c.Keys()
	require.Len(t, keys, 2)
	// Most recently used first.
	require.Equal(t, "a", keys[0].Key)
	require.Equal(t, int64(2), keys[0].HitCount)
	require.Equal(t, 10*time.Second, keys[0].Age)
	require.Equal(t, "b", keys[1].Key)
	require.Equal(t, 50*time.Second, keys[0].ExpiresIn)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, 64, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%100)
				c.Set(key, "v")
				_, _, _ = c.Get(key)
				if i%17 == 0 {
					c.Invalidate(key)
				}
				_ = c.Stats()
			}
		}(g)
	}
	wg.Wait()

	require.LessOrEqual(t, c.Len(), 64)
}

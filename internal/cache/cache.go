// Package cache implements a bounded in-memory cache with per-entry TTL and
// LRU eviction.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/talentwire/jobfetch/internal/scrape"
	"github.com/talentwire/jobfetch/internal/telemetry"
)

// Config controls cache behavior.
type Config struct {
	Capacity   int
	DefaultTTL time.Duration
}

type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
	hitCount  int64
}

// Cache is a thread-safe TTL cache bounded by capacity. Reads refresh LRU
// recency; expired entries are dropped lazily on read and preferred for
// eviction on write.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
	hits     uint64
	misses   uint64
	clock    scrape.Clock
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// KeyInfo describes one live entry for the admin API.
type KeyInfo struct {
	Key       string        `json:"key"`
	Age       time.Duration `json:"-"`
	ExpiresIn time.Duration `json:"-"`
	HitCount  int64         `json:"hit_count"`
}

// New creates a Cache.
func New[V any](cfg Config, clk scrape.Clock) (*Cache[V], error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("cache default ttl must be positive, got %s", cfg.DefaultTTL)
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Cache[V]{
		capacity: cfg.Capacity,
		ttl:      cfg.DefaultTTL,
		ll:       list.New(),
		items:    make(map[string]*list.Element, cfg.Capacity),
		clock:    clk,
	}, nil
}

// Get returns the value and its age. Expired entries are removed and count as
// misses.
func (c *Cache[V]) Get(key string) (V, time.Duration, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		telemetry.RecordCacheEvent("miss")
		return zero, 0, false
	}
	now := c.clock.Now()
	ent := el.Value.(*entry[V])
	if !now.Before(ent.expiresAt) {
		c.removeElement(el)
		c.misses++
		telemetry.RecordCacheEvent("expired")
		return zero, 0, false
	}
	ent.hitCount++
	c.hits++
	c.ll.MoveToFront(el)
	telemetry.RecordCacheEvent("hit")
	return ent.value, now.Sub(ent.createdAt), true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL. Updating an existing key
// refreshes its timestamps and recency; inserting into a full cache evicts an
// expired entry if one exists, otherwise the least recently used one.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.createdAt = now
		ent.expiresAt = now.Add(ttl)
		c.ll.MoveToFront(el)
		telemetry.RecordCacheEvent("write")
		return
	}
	if c.ll.Len() >= c.capacity {
		c.evictLocked(now)
	}
	el := c.ll.PushFront(&entry[V]{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	c.items[key] = el
	telemetry.RecordCacheEvent("write")
}

// evictLocked removes one entry to make room, preferring any expired entry
// over the LRU victim. Scans from the LRU end so the common case stays cheap.
func (c *Cache[V]) evictLocked(now time.Time) {
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		if !now.Before(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
			telemetry.RecordCacheEvent("evict_expired")
			return
		}
	}
	if el := c.ll.Back(); el != nil {
		c.removeElement(el)
		telemetry.RecordCacheEvent("evict_lru")
	}
}

func (c *Cache[V]) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}

// Invalidate removes key and reports whether it was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Clear drops every entry. Hit and miss counters survive; only size resets.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// Stats returns a snapshot of the counters. HitRate is zero before any access.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.ll.Len(),
		Capacity: c.capacity,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Keys lists live entries in recency order, most recent first. Expired
// entries are skipped but left for lazy removal.
func (c *Cache[V]) Keys() []KeyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	out := make([]KeyInfo, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*entry[V])
		if !now.Before(ent.expiresAt) {
			continue
		}
		out = append(out, KeyInfo{
			Key:       ent.key,
			Age:       now.Sub(ent.createdAt),
			ExpiresIn: ent.expiresAt.Sub(now),
			HitCount:  ent.hitCount,
		})
	}
	return out
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

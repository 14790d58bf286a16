package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRUCache is a thread-safe fixed-capacity cache with least-recently-used
// eviction and optional per-entry TTL. Expired entries are treated as
// absent by readers and removed lazily.
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[K]*list.Element
	clock    clockwork.Clock
	onEvict  func(key K, value V)
}

// NewLRUCache creates a cache holding at most capacity entries. A capacity
// below one is raised to one.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	return NewLRUCacheWithClock[K, V](capacity, clockwork.NewRealClock())
}

// NewLRUCacheWithClock creates a cache with an injected clock, used by TTL
// tests to advance time deterministically.
func NewLRUCacheWithClock[K comparable, V any](capacity int, clock clockwork.Clock) *LRUCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
		clock:    clock,
	}
}

// SetEvictCallback registers a callback invoked when an entry is evicted by
// capacity pressure or discovered expired. It is not called on explicit
// Remove or Clear.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the value for key and marks it most recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*lruEntry[K, V])
	if c.expired(entry) {
		c.removeElement(elem, true)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Put stores a value without expiry.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, 0)
}

// PutWithTTL stores a value that expires after ttl. A non-positive ttl
// means no expiry.
func (c *LRUCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clock.Now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&lruEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest, true)
		}
	}
}

// Remove deletes key and returns its value if it was present and live.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*lruEntry[K, V])
	live := !c.expired(entry)
	c.removeElement(elem, false)
	if !live {
		return zero, false
	}
	return entry.value, true
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops all entries without invoking eviction callbacks.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}

func (c *LRUCache[K, V]) expired(entry *lruEntry[K, V]) bool {
	return !entry.expiresAt.IsZero() && !c.clock.Now().Before(entry.expiresAt)
}

func (c *LRUCache[K, V]) removeElement(elem *list.Element, evicted bool) {
	entry := elem.Value.(*lruEntry[K, V])
	c.order.Remove(elem)
	delete(c.items, entry.key)
	if evicted && c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}

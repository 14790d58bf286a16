package vault

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/achocks0/payment-gateway/core/cache"
)

const (
	// maxFallbackTTL caps staleness of degraded-mode credentials.
	maxFallbackTTL = 5 * time.Minute

	defaultFallbackCapacity = 1024
)

// FallbackCache holds last-known-good active credential sets so
// authentication can continue, flagged as degraded, while the vault is
// unreachable. Entries expire after at most five minutes regardless of the
// configured TTL.
type FallbackCache struct {
	entries *cache.LRUCache[string, map[int]Credential]
	ttl     time.Duration
}

// NewFallbackCache creates a bounded fallback cache. A zero or negative
// capacity falls back to the default; the TTL is clamped to five minutes.
func NewFallbackCache(capacity int, ttl time.Duration) *FallbackCache {
	return NewFallbackCacheWithClock(capacity, ttl, clockwork.NewRealClock())
}

// NewFallbackCacheWithClock creates a fallback cache with an injected
// clock for deterministic staleness tests.
func NewFallbackCacheWithClock(capacity int, ttl time.Duration, clock clockwork.Clock) *FallbackCache {
	if capacity <= 0 {
		capacity = defaultFallbackCapacity
	}
	if ttl <= 0 || ttl > maxFallbackTTL {
		ttl = maxFallbackTTL
	}
	return &FallbackCache{
		entries: cache.NewLRUCacheWithClock[string, map[int]Credential](capacity, clock),
		ttl:     ttl,
	}
}

// Put records the client's current active versions after a successful
// vault read. Empty sets are not cached; a vendor with no credentials must
// not authenticate out of stale data.
func (f *FallbackCache) Put(clientID string, versions map[int]Credential) {
	if len(versions) == 0 {
		return
	}
	copied := make(map[int]Credential, len(versions))
	for v, cred := range versions {
		copied[v] = cred
	}
	f.entries.PutWithTTL(clientID, copied, f.ttl)
}

// Get returns the cached active versions for a client, if still fresh.
func (f *FallbackCache) Get(clientID string) (map[int]Credential, bool) {
	versions, ok := f.entries.Get(clientID)
	if !ok {
		return nil, false
	}
	copied := make(map[int]Credential, len(versions))
	for v, cred := range versions {
		copied[v] = cred
	}
	return copied, true
}

// Invalidate drops the cached entry for a client. Rotation completion calls
// this so a disabled version cannot authenticate out of the fallback.
func (f *FallbackCache) Invalidate(clientID string) {
	f.entries.Remove(clientID)
}

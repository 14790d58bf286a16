// Package cache provides a thread-safe generic LRU cache with optional
// per-entry TTL.
//
// The gateway uses it for the fallback credential cache consulted when the
// vault is unreachable and for the negative cache of recently failed token
// validations. Expired entries are treated as absent by readers and cleaned
// up lazily.
//
// # Usage
//
//	c := cache.NewLRUCache[string, vault.Credential](1000)
//	c.PutWithTTL(clientID, cred, 5*time.Minute)
//
//	if cred, ok := c.Get(clientID); ok {
//		// serve from cache, flagged degraded
//	}
//
// Eviction callbacks fire when an entry is displaced by capacity pressure
// or discovered expired, which lets callers track cache churn:
//
//	c.SetEvictCallback(func(key string, _ vault.Credential) {
//		metrics.FallbackEvictions.Inc()
//	})
package cache

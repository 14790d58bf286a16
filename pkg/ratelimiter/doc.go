// Package ratelimiter implements token-bucket rate limiting keyed by an
// arbitrary string, used by the gateway to blunt credential stuffing on
// authentication-bearing routes.
//
// A Bucket pairs a Config (capacity, refill rate, refill interval) with a
// Store holding per-key bucket state. The in-memory store reaps stale
// buckets in the background:
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       30,
//		RefillRate:     30,
//		RefillInterval: time.Minute,
//	})
//
//	result, err := limiter.Allow(ctx, clientID+":"+ip)
//	if !result.Allowed() {
//		// 429 with result.RetryAfter()
//	}
//
// The algorithm permits bursts up to Capacity while holding the long-run
// rate at RefillRate per RefillInterval.
package ratelimiter

package ratelimiter

import (
	"context"
	"time"
)

// Config describes one token bucket shape.
type Config struct {
	// Capacity bounds the burst size.
	Capacity int
	// RefillRate tokens are added every RefillInterval, up to Capacity.
	RefillRate     int
	RefillInterval time.Duration
}

func (c Config) valid() bool {
	return c.Capacity > 0 && c.RefillRate > 0 && c.RefillInterval > 0
}

// Result reports the outcome of a consumption attempt.
type Result struct {
	// Limit is the bucket capacity.
	Limit int
	// Remaining is the token count left after the attempt; negative when
	// the attempt was denied.
	Remaining int
	// ResetAt is when the next refill lands.
	ResetAt time.Time
}

// Allowed reports whether the attempt was within the limit.
func (r Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long a denied caller should wait before retrying.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	wait := time.Until(r.ResetAt)
	if wait < 0 {
		return 0
	}
	return wait
}

// RateLimiter is the consumption contract used by HTTP middleware.
type RateLimiter interface {
	// Allow consumes one token for key.
	Allow(ctx context.Context, key string) (Result, error)
	// AllowN consumes n tokens for key.
	AllowN(ctx context.Context, key string, n int) (Result, error)
}

// Store holds per-key bucket state.
type Store interface {
	// ConsumeTokens applies the token bucket algorithm for key and returns
	// the remaining count (negative when denied) and the next refill time.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	// Reset drops the bucket for key.
	Reset(ctx context.Context, key string) error
}

// Bucket is a RateLimiter binding a Config to a Store.
type Bucket struct {
	store Store
	cfg   Config
}

// NewBucket creates a rate limiter with the given store and configuration.
func NewBucket(store Store, cfg Config) (*Bucket, error) {
	if !cfg.valid() {
		return nil, ErrInvalidConfig
	}
	return &Bucket{store: store, cfg: cfg}, nil
}

// Allow consumes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for key.
func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 {
		return Result{}, ErrInvalidTokenCount
	}

	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Limit: b.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}

// Reset drops the bucket for key, lifting any active limit.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}

package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const staleAfter = 2

// bucketState is one key's live bucket.
type bucketState struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// MemoryStore keeps bucket state in process. Buckets idle for more than
// two full refills of their last-seen configuration are reaped by the
// janitor. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	clock   clockwork.Clock

	janitorInterval time.Duration
	maxIdle         time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithJanitorInterval sets how often stale buckets are reaped. Zero
// disables the janitor.
func WithJanitorInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.janitorInterval = d
	}
}

// WithMemoryStoreClock injects a clock for deterministic refill tests.
func WithMemoryStoreClock(clock clockwork.Clock) MemoryStoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore creates an in-process bucket store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		buckets:         make(map[string]*bucketState),
		clock:           clockwork.NewRealClock(),
		janitorInterval: 5 * time.Minute,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the janitor until the context is cancelled or Close is
// called. It blocks; run it in a goroutine or through errgroup.
func (s *MemoryStore) Start(ctx context.Context) error {
	if s.janitorInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := s.clock.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.Chan():
			s.reap()
		}
	}
}

// Close stops the janitor.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// ConsumeTokens applies the token bucket algorithm for key.
func (s *MemoryStore) ConsumeTokens(_ context.Context, key string, tokens int, cfg Config) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucketState{tokens: cfg.Capacity, lastRefill: now}
		s.buckets[key] = b
	}

	// Whole elapsed intervals refill at RefillRate, capped at capacity;
	// the interval count itself is capped to avoid overflow after long
	// idle periods.
	elapsed := now.Sub(b.lastRefill)
	maxIntervals := int64(cfg.Capacity/cfg.RefillRate + 1)
	intervals := min(int64(elapsed/cfg.RefillInterval), maxIntervals)
	if intervals > 0 {
		b.tokens = min(b.tokens+int(intervals)*cfg.RefillRate, cfg.Capacity)
		b.lastRefill = now
	}

	b.tokens -= tokens
	b.lastAccess = now
	s.maxIdle = max(s.maxIdle, staleAfter*cfg.RefillInterval)

	return b.tokens, b.lastRefill.Add(cfg.RefillInterval), nil
}

// Reset drops the bucket for key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Len returns the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *MemoryStore) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxIdle <= 0 {
		return
	}
	cutoff := s.clock.Now().Add(-s.maxIdle)
	for key, b := range s.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}

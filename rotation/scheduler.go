package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/achocks0/payment-gateway/core/logger"
)

// Scheduler periodically drives Manager.CheckProgress so rotations whose
// windows have elapsed advance without operator action.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	clock    clockwork.Clock
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
	ticks   atomic.Int64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock injects a fake clock for tests.
func WithSchedulerClock(clock clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = log.With(logger.Component("rotation-scheduler")) }
}

// NewScheduler creates a scheduler ticking at the manager's configured
// monitor interval.
func NewScheduler(manager *Manager, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		manager:  manager,
		interval: manager.cfg.MonitorInterval,
		clock:    clockwork.NewRealClock(),
		log:      slog.Default().With(logger.Component("rotation-scheduler")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks, checking rotation progress every interval until the
// context is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("rotation scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	s.log.InfoContext(ctx, "rotation scheduler started", logger.Duration(s.interval))

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(context.Background(), "rotation scheduler stopping")
			return ctx.Err()
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

// Stop cancels the loop and waits for an in-flight check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Run returns an errgroup-compatible function wrapping Start with
// graceful shutdown on context cancellation.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		err := s.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Healthcheck reports whether the loop is running, for readiness probes.
func (s *Scheduler) Healthcheck(context.Context) error {
	if !s.running.Load() {
		return errors.New("rotation scheduler not running")
	}
	return nil
}

// Ticks returns how many checks have run, for tests and stats.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

func (s *Scheduler) tick(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.manager.CheckProgress(ctx)
	s.ticks.Add(1)
}

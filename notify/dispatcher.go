package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/achocks0/payment-gateway/core/logger"
)

// Dispatcher decouples event emission from delivery through a buffered
// channel. Notify never blocks: when the buffer is full the event is
// dropped and the drop is logged. A single worker goroutine drains the
// buffer and hands events to the transport.
type Dispatcher struct {
	transport Transport
	ch        chan Event
	log       *slog.Logger

	// mu orders Notify sends against the channel close in Close.
	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given buffer size. The
// worker is not started until Start is called.
func NewDispatcher(transport Transport, bufferSize int, log *slog.Logger) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		transport: transport,
		ch:        make(chan Event, bufferSize),
		log:       log.With(logger.Component("notify")),
	}
}

// Notify enqueues the event for delivery. If the buffer is full the
// event is dropped rather than blocking the caller.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- event:
	default:
		d.log.WarnContext(ctx, "notification dropped, buffer full",
			slog.String("event_type", string(event.Type)),
			logger.RotationID(event.RotationID))
	}
}

// Start launches the delivery worker. It returns immediately; the worker
// runs until the context is canceled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case event, ok := <-d.ch:
				if !ok {
					return
				}
				d.deliver(ctx, event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops accepting events and waits for the worker to drain the
// buffer. Idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	if err := d.transport.Send(ctx, event); err != nil {
		d.log.ErrorContext(ctx, "notification delivery failed",
			slog.String("event_type", string(event.Type)),
			logger.RotationID(event.RotationID),
			slog.String("error", err.Error()))
	}
}

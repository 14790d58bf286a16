package audit

import (
	"context"
	"log/slog"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/notify"
)

// RotationNotifier records rotation lifecycle events before forwarding
// them to the next notifier. Recording happens off the caller's
// goroutine so a slow audit database never holds up a state transition.
type RotationNotifier struct {
	recorder Recorder
	next     notify.Notifier
	log      *slog.Logger
}

// NewRotationNotifier wraps next with audit recording. A nil next
// defaults to notify.Nop.
func NewRotationNotifier(recorder Recorder, next notify.Notifier, log *slog.Logger) *RotationNotifier {
	if next == nil {
		next = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &RotationNotifier{
		recorder: recorder,
		next:     next,
		log:      log.With(logger.Component("audit")),
	}
}

// Notify records the event and forwards it.
func (n *RotationNotifier) Notify(ctx context.Context, event notify.Event) {
	rec := RotationEvent{
		RotationID: event.RotationID,
		ClientID:   event.ClientID,
		FromState:  event.FromState,
		ToState:    event.ToState,
		Message:    event.Message,
		OccurredAt: event.At,
	}
	// Detach from the request context so cancellation does not lose the
	// audit row.
	go func(ctx context.Context) {
		if err := n.recorder.RecordRotationEvent(ctx, rec); err != nil {
			n.log.ErrorContext(ctx, "rotation audit record failed",
				logger.RotationID(rec.RotationID), logger.Error(err))
		}
	}(context.WithoutCancel(ctx))

	n.next.Notify(ctx, event)
}

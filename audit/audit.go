package audit

import (
	"context"
	"time"
)

// TokenIssued is one minted token. The token value itself is never
// recorded; the jti is enough to correlate with validation logs.
type TokenIssued struct {
	ClientID      string
	JTI           string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Degraded      bool
	CorrelationID string
}

// RotationEvent is one rotation lifecycle step.
type RotationEvent struct {
	RotationID string
	ClientID   string
	FromState  string
	ToState    string
	Message    string
	OccurredAt time.Time
}

// Recorder persists audit records. Writes are best effort: callers log
// failures and move on, the hot path never blocks on audit storage.
type Recorder interface {
	RecordTokenIssued(ctx context.Context, rec TokenIssued) error
	RecordRotationEvent(ctx context.Context, rec RotationEvent) error
}

// Nop discards every record, for deployments without an audit database.
type Nop struct{}

func (Nop) RecordTokenIssued(context.Context, TokenIssued) error     { return nil }
func (Nop) RecordRotationEvent(context.Context, RotationEvent) error { return nil }

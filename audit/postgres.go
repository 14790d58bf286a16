package audit

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrations holds the embedded goose migrations for the audit schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// PostgresRecorder writes audit records to PostgreSQL via a pgx pool.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a recorder backed by the given pool. The
// schema must already be migrated, see Migrations.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

// RecordTokenIssued inserts one token issuance row.
func (r *PostgresRecorder) RecordTokenIssued(ctx context.Context, rec TokenIssued) error {
	const q = `INSERT INTO token_issuance (client_id, jti, issued_at, expires_at, degraded, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.pool.Exec(ctx, q,
		rec.ClientID, rec.JTI, rec.IssuedAt, rec.ExpiresAt, rec.Degraded, rec.CorrelationID); err != nil {
		return fmt.Errorf("record token issuance: %w", err)
	}
	return nil
}

// RecordRotationEvent inserts one rotation lifecycle row.
func (r *PostgresRecorder) RecordRotationEvent(ctx context.Context, rec RotationEvent) error {
	const q = `INSERT INTO rotation_events (rotation_id, client_id, from_state, to_state, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.pool.Exec(ctx, q,
		rec.RotationID, rec.ClientID, rec.FromState, rec.ToState, rec.Message, rec.OccurredAt); err != nil {
		return fmt.Errorf("record rotation event: %w", err)
	}
	return nil
}

// Healthcheck verifies the audit database answers.
func (r *PostgresRecorder) Healthcheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Package pg provides PostgreSQL connection management for the gateway's
// audit store.
//
// Connect creates a pgx connection pool with constant-interval retry and
// verifies connectivity with a ping before returning. Migrate applies
// embedded goose migrations through the database/sql adapter, since goose
// has no native pgx support. Healthcheck returns a probe function for
// readiness endpoints.
//
// Configuration comes from the environment:
//
//	cfg := config.MustLoad[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, audit.Migrations); err != nil {
//		return err
//	}
//
// Error classification helpers (IsNotFoundError, IsDuplicateKeyError,
// IsForeignKeyViolationError) cover the common PostgreSQL failure
// patterns so callers can branch without inspecting SQLSTATE codes.
package pg

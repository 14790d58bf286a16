package token

import "context"

// Store is the dual-keyed token cache. Every token is reachable by client
// id (the hot path for reuse) and by jti (the revocation path). Entries
// live until the token's expiry; expired-but-not-yet-evicted entries are
// treated as absent. Implementations must be safe for concurrent use.
//
// Tokens are ephemeral: a store that loses its contents forces re-minting,
// nothing more.
type Store interface {
	// GetByClientID returns the client's current token.
	GetByClientID(ctx context.Context, clientID string) (*Token, error)
	// GetByJTI returns a live token by its unique identifier.
	GetByJTI(ctx context.Context, jti string) (*Token, error)
	// Save stores the token under both keys with TTL equal to its
	// remaining lifetime.
	Save(ctx context.Context, t *Token) error
	// DeleteByClientID removes every token of the client and returns how
	// many were dropped. It is idempotent.
	DeleteByClientID(ctx context.Context, clientID string) (int64, error)
	// DeleteByJTI removes a single token by identifier.
	DeleteByJTI(ctx context.Context, jti string) error
	// DeleteExpired removes expired entries and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

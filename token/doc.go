// Package token defines the minted bearer token and its dual-keyed cache.
//
// Every token is stored under two keys: the client id, which is the hot
// path for reusing an unexpired token on repeat authentications, and the
// jti, which the ingress validator uses for revocation checks. Entries
// carry a TTL equal to the token's remaining lifetime; expired entries are
// treated as absent even before they are evicted.
//
// Two implementations are provided. MemoryStore serves single-instance
// deployments and tests; RedisStore shares tokens across gateway replicas.
// Invalidation by client id walks a per-client index set, which is what
// lets credential rotation cut off every outstanding token of a client in
// one call:
//
//	count, err := store.DeleteByClientID(ctx, "vendor-a")
//
// Tokens are ephemeral. Losing the store forces re-minting on the next
// request and nothing else; no token survives its exp claim.
package token

// Package verifier validates bearer tokens at the downstream ingress:
// signature, expiry, audience, allowed issuers, required permission, and
// an optional cache-backed revocation check by jti.
//
// Failed validations are negative-cached under a BLAKE2b digest of the
// exact token string for at most a third of the nominal token lifetime, so
// replayed garbage is rejected without repeating signature work. Renewed
// tokens are never affected: their string, and therefore their digest,
// changes.
//
// When a valid token is inside the last tenth of its life the verifier
// reports a renewal hint; Middleware surfaces it as the
// X-Token-Renewal-Suggested response header.
package verifier

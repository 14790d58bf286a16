// Package auth translates legacy header credentials into signed bearer
// tokens.
//
// Validator resolves a client's active credential versions from the vault
// (at most two during rotation) and matches the presented secret against
// every version in constant time per version, so response timing does not
// reveal which version matched. When the vault is unreachable it may fall
// back to a bounded cache of last-known-good credentials, flagging the
// outcome as degraded.
//
// Service orchestrates the hot path: sanitize headers, reuse the cached
// token while more than a fifth of its life remains, otherwise mint under a
// per-client single flight so concurrent callers share one validator call
// and one token:
//
//	svc := auth.NewService(cfg, validator, codec, store, m, log)
//	tok, err := svc.Authenticate(ctx, auth.Headers{
//		ClientID:      r.Header.Get("X-Client-ID"),
//		Secret:        r.Header.Get("X-Client-Secret"),
//		CorrelationID: correlationID,
//	})
//
// Failures are redacted: unknown clients and wrong secrets are
// indistinguishable, and no error carries plaintext secret material.
package auth

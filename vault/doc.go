// Package vault stores and retrieves versioned client credentials in a
// secret vault. Records are keyed by client id and version; a per-client
// index lists known versions and the rotation transition in effect.
//
// # Client
//
// Client is the capability surface consumed by the credential validator
// (read paths) and the rotation manager (the only writer). The production
// implementation, HashicorpClient, keeps records in a HashiCorp Vault KV v2
// mount and retries only unavailability, with exponential backoff and
// jitter:
//
//	client, err := vault.NewHashicorpClient(cfg)
//	if err != nil {
//		return err
//	}
//	cred, err := client.Retrieve(ctx, "vendor-a")
//
// Errors are classified as ErrNotFound, ErrPermission, or ErrUnavailable;
// only the last is ever retried. MemoryClient is an in-process variant for
// tests and development with a switchable availability flag.
//
// # Degraded Mode
//
// FallbackCache keeps last-known-good active credential sets for at most
// five minutes. When the vault is unreachable the validator may consult it
// and flag the outcome as degraded:
//
//	fallback := vault.NewFallbackCache(1024, cfg.FallbackTTL)
//	fallback.Put("vendor-a", versions) // after each successful read
//
// The cache is bounded, time-limited, and never a substitute for the vault:
// empty version sets are not cached and rotation completion invalidates the
// client's entry.
package vault

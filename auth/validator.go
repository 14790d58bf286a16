package auth

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/pkg/crypto"
	"github.com/achocks0/payment-gateway/vault"
)

// Match is a successful credential validation: the version that matched and
// its rotation marker, plus whether the lookup was served from the degraded
// fallback cache instead of the vault.
type Match struct {
	Credential vault.Credential
	Degraded   bool
}

// Validator resolves a client's active credential versions and matches a
// presented secret against them in constant time per version. During
// rotation up to two versions are active and either may match.
type Validator struct {
	vault    vault.Client
	fallback *vault.FallbackCache
	log      *slog.Logger
}

// NewValidator creates a credential validator. The fallback cache is
// optional; without it vault unavailability fails closed.
func NewValidator(client vault.Client, fallback *vault.FallbackCache, log *slog.Logger) *Validator {
	return &Validator{vault: client, fallback: fallback, log: log}
}

// Verify matches the secret against every active version of the client.
// The full version set is always evaluated so response timing does not
// reveal which version matched or how many exist.
func (v *Validator) Verify(ctx context.Context, clientID, secret string) (*Match, error) {
	versions, degraded, err := v.activeVersions(ctx, clientID)
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, len(versions))
	for ver := range versions {
		order = append(order, ver)
	}
	sort.Ints(order)

	matched := -1
	for _, ver := range order {
		cred := versions[ver]
		// No early exit: every version is checked even after a match.
		if crypto.VerifyCredential(secret, cred.HashedSecret) && matched == -1 {
			matched = ver
		}
	}
	if matched == -1 {
		return nil, ErrInvalidCredentials
	}

	return &Match{Credential: versions[matched], Degraded: degraded}, nil
}

// activeVersions reads the client's active versions from the vault,
// refreshing the fallback cache on success and consulting it when the
// vault is unreachable.
func (v *Validator) activeVersions(ctx context.Context, clientID string) (map[int]vault.Credential, bool, error) {
	versions, err := v.vault.ActiveVersions(ctx, clientID)
	if err == nil {
		if v.fallback != nil {
			v.fallback.Put(clientID, versions)
		}
		return versions, false, nil
	}

	if errors.Is(err, vault.ErrNotFound) {
		// Unknown clients fail exactly like wrong secrets.
		return nil, false, ErrInvalidCredentials
	}
	if errors.Is(err, vault.ErrUnavailable) && v.fallback != nil {
		if cached, ok := v.fallback.Get(clientID); ok {
			v.log.WarnContext(ctx, "vault unavailable, using fallback credentials",
				logger.ClientID(clientID), logger.Degraded(true))
			return cached, true, nil
		}
	}
	return nil, false, err
}

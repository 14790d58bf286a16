package token

import (
	"time"
)

// Token is a minted bearer token as held by the cache. The Value is the
// compact signed form forwarded downstream; JTI is its unique identifier
// used for revocation lookups.
type Token struct {
	ClientID    string    `json:"clientId"`
	Value       string    `json:"value"`
	JTI         string    `json:"jti"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Permissions []string  `json:"permissions,omitempty"`
}

// Expired reports whether the token is expired at the given instant. A
// token at exactly its expiry is expired.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TTL returns the remaining lifetime at the given instant, never negative.
func (t Token) TTL(now time.Time) time.Duration {
	if t.Expired(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// RemainingShare returns the fraction of total lifetime still left, in
// [0, 1]. The authentication service reuses cached tokens only while more
// than 20% of life remains; the ingress validator hints renewal inside the
// last 10%.
func (t Token) RemainingShare(now time.Time) float64 {
	total := t.ExpiresAt.Sub(t.IssuedAt)
	if total <= 0 {
		return 0
	}
	remaining := t.TTL(now)
	return float64(remaining) / float64(total)
}

package vault

import "time"

// RotationState marks a credential version's role inside an in-progress
// rotation. Outside rotation every version carries RotationNone; during
// rotation exactly one version of the client carries RotationDualActive or
// RotationOldDeprecated.
type RotationState string

const (
	// RotationNone means the version is not part of a rotation.
	RotationNone RotationState = "none"
	// RotationDualActive marks the outgoing version while both secrets authenticate.
	RotationDualActive RotationState = "dual_active"
	// RotationOldDeprecated marks the outgoing version after its deprecation tick;
	// it still authenticates until the rotation completes.
	RotationOldDeprecated RotationState = "old_deprecated"
)

// Credential is one stored version of a client's secret. The secret itself
// never appears here; HashedSecret is the salted digest produced by
// crypto.HashCredential.
type Credential struct {
	ClientID      string        `json:"clientId"`
	HashedSecret  string        `json:"hashedSecret"`
	Version       int           `json:"version"`
	Active        bool          `json:"active"`
	RotationState RotationState `json:"rotationState"`
	Permissions   []string      `json:"permissions,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	ExpiresAt     time.Time     `json:"expiresAt,omitzero"`
}

// Expired reports whether the credential version has an expiry in the past.
// A zero ExpiresAt never expires.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

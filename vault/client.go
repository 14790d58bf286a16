package vault

import (
	"context"
	"time"
)

// Client is the credential-store capability consumed by the gateway. The
// rotation manager is the only writer; the credential validator uses the
// read paths exclusively. Implementations must be safe for concurrent use.
//
// Read failures are classified: ErrNotFound for absent clients or versions,
// ErrUnavailable for network or server trouble (the only retryable kind),
// ErrPermission for rejected tokens.
type Client interface {
	// Retrieve returns the newest active credential version for the client.
	Retrieve(ctx context.Context, clientID string) (*Credential, error)
	// RetrieveVersion returns one specific credential version.
	RetrieveVersion(ctx context.Context, clientID string, version int) (*Credential, error)
	// Store writes the credential record at cred.Version, overwriting any
	// existing record for that version.
	Store(ctx context.Context, cred *Credential) error
	// StoreNewVersion writes the credential under an explicit new version
	// and registers it in the client's version index. The version must not
	// already exist.
	StoreNewVersion(ctx context.Context, cred *Credential, version int) error
	// ConfigureTransition records the rotation window between two versions
	// and marks the outgoing version dual-active.
	ConfigureTransition(ctx context.Context, clientID string, oldVersion, newVersion int, window time.Duration) error
	// SetRotationState updates the rotation marker on one version.
	SetRotationState(ctx context.Context, clientID string, version int, state RotationState) error
	// DisableVersion marks a version inactive so it no longer authenticates.
	DisableVersion(ctx context.Context, clientID string, version int) error
	// RemoveVersion deletes a version record and drops it from the index.
	RemoveVersion(ctx context.Context, clientID string, version int) error
	// ActiveVersions returns every active, unexpired version of the client,
	// keyed by version number. At most two entries under normal operation.
	ActiveVersions(ctx context.Context, clientID string) (map[int]Credential, error)
	// Available reports whether the vault currently answers health probes.
	Available(ctx context.Context) bool
}

// Transition is the rotation window recorded against a client while two
// credential versions authenticate side by side.
type Transition struct {
	OldVersion   int       `json:"oldVersion"`
	NewVersion   int       `json:"newVersion"`
	Window       int64     `json:"windowSeconds"`
	ConfiguredAt time.Time `json:"configuredAt"`
}

package vault

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryClient is an in-process Client for tests and single-node
// development. It honors the same error classification as the vault-backed
// client and can simulate an outage via SetAvailable.
type MemoryClient struct {
	mu          sync.RWMutex
	records     map[string]map[int]Credential
	transitions map[string]Transition
	available   bool
}

// NewMemoryClient creates an empty in-process credential store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		records:     make(map[string]map[int]Credential),
		transitions: make(map[string]Transition),
		available:   true,
	}
}

// SetAvailable toggles simulated vault availability. While unavailable
// every operation fails with ErrUnavailable.
func (c *MemoryClient) SetAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = available
}

func (c *MemoryClient) unavailable() bool {
	return !c.available
}

// Retrieve returns the newest active credential version for the client.
func (c *MemoryClient) Retrieve(_ context.Context, clientID string) (*Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.unavailable() {
		return nil, ErrUnavailable
	}

	versions := c.activeVersionsLocked(clientID)
	if len(versions) == 0 {
		return nil, ErrNotFound
	}

	keys := make([]int, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	cred := versions[keys[0]]
	return &cred, nil
}

// RetrieveVersion returns one specific credential version.
func (c *MemoryClient) RetrieveVersion(_ context.Context, clientID string, version int) (*Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.unavailable() {
		return nil, ErrUnavailable
	}

	cred, ok := c.records[clientID][version]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

// Store writes the credential record at cred.Version.
func (c *MemoryClient) Store(_ context.Context, cred *Credential) error {
	if cred == nil || cred.ClientID == "" || cred.Version <= 0 || cred.HashedSecret == "" {
		return ErrInvalidCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable() {
		return ErrUnavailable
	}
	c.putLocked(*cred)
	return nil
}

// StoreNewVersion writes the credential under an explicit new version.
func (c *MemoryClient) StoreNewVersion(_ context.Context, cred *Credential, version int) error {
	if cred == nil || cred.ClientID == "" || version <= 0 || cred.HashedSecret == "" {
		return ErrInvalidCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable() {
		return ErrUnavailable
	}
	if _, exists := c.records[cred.ClientID][version]; exists {
		return ErrVersionExists
	}

	versioned := *cred
	versioned.Version = version
	c.putLocked(versioned)
	return nil
}

// ConfigureTransition records the rotation window and marks the outgoing
// version dual-active.
func (c *MemoryClient) ConfigureTransition(_ context.Context, clientID string, oldVersion, newVersion int, window time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable() {
		return ErrUnavailable
	}

	versions := c.records[clientID]
	old, okOld := versions[oldVersion]
	if _, okNew := versions[newVersion]; !okOld || !okNew {
		return ErrNotFound
	}

	c.transitions[clientID] = Transition{
		OldVersion:   oldVersion,
		NewVersion:   newVersion,
		Window:       int64(window / time.Second),
		ConfiguredAt: time.Now().UTC(),
	}
	old.RotationState = RotationDualActive
	versions[oldVersion] = old
	return nil
}

// SetRotationState updates the rotation marker on one version.
func (c *MemoryClient) SetRotationState(_ context.Context, clientID string, version int, state RotationState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable() {
		return ErrUnavailable
	}

	cred, ok := c.records[clientID][version]
	if !ok {
		return ErrNotFound
	}
	cred.RotationState = state
	c.records[clientID][version] = cred
	return nil
}

// DisableVersion marks a version inactive.
func (c *MemoryClient) DisableVersion(_ context.Context, clientID string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable() {
		return ErrUnavailable
	}

	cred, ok := c.records[clientID][version]
	if !ok {
		return ErrNotFound
	}
	cred.Active = false
	cred.RotationState = RotationNone
	c.records[clientID][version] = cred
	return nil
}

// RemoveVersion deletes a version record.
func (c *MemoryClient) RemoveVersion(_ context.Context, clientID string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable() {
		return ErrUnavailable
	}

	delete(c.records[clientID], version)
	if t, ok := c.transitions[clientID]; ok && (t.OldVersion == version || t.NewVersion == version) {
		delete(c.transitions, clientID)
	}
	return nil
}

// ActiveVersions returns every active, unexpired version of the client.
func (c *MemoryClient) ActiveVersions(_ context.Context, clientID string) (map[int]Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.unavailable() {
		return nil, ErrUnavailable
	}
	if _, ok := c.records[clientID]; !ok {
		return nil, ErrNotFound
	}
	return c.activeVersionsLocked(clientID), nil
}

// Available reports simulated vault availability.
func (c *MemoryClient) Available(_ context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// Transition returns the recorded rotation window for a client, if any.
func (c *MemoryClient) Transition(clientID string) (Transition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.transitions[clientID]
	return t, ok
}

func (c *MemoryClient) putLocked(cred Credential) {
	versions, ok := c.records[cred.ClientID]
	if !ok {
		versions = make(map[int]Credential, 2)
		c.records[cred.ClientID] = versions
	}
	versions[cred.Version] = cred
}

func (c *MemoryClient) activeVersionsLocked(clientID string) map[int]Credential {
	now := time.Now()
	active := make(map[int]Credential, 2)
	for v, cred := range c.records[clientID] {
		if cred.Active && !cred.Expired(now) {
			active[v] = cred
		}
	}
	return active
}

package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/vault/api"
	"golang.org/x/sync/singleflight"
)

// HashicorpClient stores credential records in a HashiCorp Vault KV v2
// mount. Each version lives at its own path; a per-client index document
// lists known versions and the current rotation transition, if any.
//
// Unavailable responses are retried with exponential backoff and jitter up
// to the configured attempt count. Not-found and permission failures are
// surfaced immediately.
type HashicorpClient struct {
	kv     *api.KVv2
	sys    *api.Sys
	prefix string

	retryCount    int
	retryInterval time.Duration
	retryMulti    float64
	readTimeout   time.Duration

	// Index documents are read-modify-write; mutations are serialized so
	// concurrent rotation steps cannot drop each other's versions.
	mu sync.Mutex

	// Health probes are deduplicated: concurrent callers share one
	// in-flight request to the vault.
	health singleflight.Group
}

// NewHashicorpClient builds a vault client from configuration.
func NewHashicorpClient(cfg Config) (*HashicorpClient, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	apiCfg.Timeout = cfg.ConnectTimeout + cfg.ReadTimeout
	// Retry is handled here so only unavailability is retried.
	apiCfg.MaxRetries = 0

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &HashicorpClient{
		kv:            client.KVv2(cfg.Mount),
		sys:           client.Sys(),
		prefix:        cfg.PathPrefix,
		retryCount:    cfg.RetryCount,
		retryInterval: cfg.RetryInterval,
		retryMulti:    cfg.RetryBackoffMulti,
		readTimeout:   cfg.ReadTimeout,
	}, nil
}

// clientIndex is the per-client document listing known credential versions
// and the rotation transition in effect, if any.
type clientIndex struct {
	Versions   []int       `json:"versions"`
	Transition *Transition `json:"transition,omitempty"`
}

func (c *HashicorpClient) credentialPath(clientID string, version int) string {
	return c.prefix + "/clients/" + clientID + "/versions/" + strconv.Itoa(version)
}

func (c *HashicorpClient) indexPath(clientID string) string {
	return c.prefix + "/clients/" + clientID + "/index"
}

// Retrieve returns the newest active credential version for the client.
func (c *HashicorpClient) Retrieve(ctx context.Context, clientID string) (*Credential, error) {
	active, err := c.ActiveVersions(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrNotFound
	}

	versions := make([]int, 0, len(active))
	for v := range active {
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	cred := active[versions[0]]
	return &cred, nil
}

// RetrieveVersion returns one specific credential version.
func (c *HashicorpClient) RetrieveVersion(ctx context.Context, clientID string, version int) (*Credential, error) {
	var cred *Credential
	err := c.withRetry(ctx, func() error {
		var err error
		cred, err = c.readCredential(ctx, clientID, version)
		return err
	})
	return cred, err
}

// Store writes the credential record at cred.Version, registering the
// version in the client's index when absent.
func (c *HashicorpClient) Store(ctx context.Context, cred *Credential) error {
	if cred == nil || cred.ClientID == "" || cred.Version <= 0 || cred.HashedSecret == "" {
		return ErrInvalidCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withRetry(ctx, func() error {
		if err := c.writeCredential(ctx, cred); err != nil {
			return err
		}
		return c.updateIndex(ctx, cred.ClientID, func(idx *clientIndex) error {
			idx.addVersion(cred.Version)
			return nil
		})
	})
}

// StoreNewVersion writes the credential under an explicit new version. The
// version must not already be present in the client's index.
func (c *HashicorpClient) StoreNewVersion(ctx context.Context, cred *Credential, version int) error {
	if cred == nil || cred.ClientID == "" || version <= 0 || cred.HashedSecret == "" {
		return ErrInvalidCredential
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withRetry(ctx, func() error {
		idx, err := c.readIndex(ctx, cred.ClientID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if idx != nil && idx.hasVersion(version) {
			return ErrVersionExists
		}

		versioned := *cred
		versioned.Version = version
		if err := c.writeCredential(ctx, &versioned); err != nil {
			return err
		}
		return c.updateIndex(ctx, cred.ClientID, func(idx *clientIndex) error {
			idx.addVersion(version)
			return nil
		})
	})
}

// ConfigureTransition records the rotation window and marks the outgoing
// version dual-active.
func (c *HashicorpClient) ConfigureTransition(ctx context.Context, clientID string, oldVersion, newVersion int, window time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withRetry(ctx, func() error {
		if err := c.updateIndex(ctx, clientID, func(idx *clientIndex) error {
			if !idx.hasVersion(oldVersion) || !idx.hasVersion(newVersion) {
				return ErrNotFound
			}
			idx.Transition = &Transition{
				OldVersion:   oldVersion,
				NewVersion:   newVersion,
				Window:       int64(window / time.Second),
				ConfiguredAt: time.Now().UTC(),
			}
			return nil
		}); err != nil {
			return err
		}
		return c.setRotationState(ctx, clientID, oldVersion, RotationDualActive)
	})
}

// SetRotationState updates the rotation marker on one version.
func (c *HashicorpClient) SetRotationState(ctx context.Context, clientID string, version int, state RotationState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withRetry(ctx, func() error {
		return c.setRotationState(ctx, clientID, version, state)
	})
}

// DisableVersion marks a version inactive so it no longer authenticates.
func (c *HashicorpClient) DisableVersion(ctx context.Context, clientID string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withRetry(ctx, func() error {
		cred, err := c.readCredential(ctx, clientID, version)
		if err != nil {
			return err
		}
		cred.Active = false
		cred.RotationState = RotationNone
		return c.writeCredential(ctx, cred)
	})
}

// RemoveVersion deletes a version record and drops it from the index. A
// transition referencing the version is cleared with it.
func (c *HashicorpClient) RemoveVersion(ctx context.Context, clientID string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.withRetry(ctx, func() error {
		if err := c.kv.DeleteMetadata(ctx, c.credentialPath(clientID, version)); err != nil {
			return classify(err)
		}
		return c.updateIndex(ctx, clientID, func(idx *clientIndex) error {
			idx.removeVersion(version)
			if t := idx.Transition; t != nil && (t.OldVersion == version || t.NewVersion == version) {
				idx.Transition = nil
			}
			return nil
		})
	})
}

// ActiveVersions returns every active, unexpired version of the client.
func (c *HashicorpClient) ActiveVersions(ctx context.Context, clientID string) (map[int]Credential, error) {
	var active map[int]Credential
	err := c.withRetry(ctx, func() error {
		idx, err := c.readIndex(ctx, clientID)
		if err != nil {
			return err
		}

		now := time.Now()
		active = make(map[int]Credential, 2)
		for _, v := range idx.Versions {
			cred, err := c.readCredential(ctx, clientID, v)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if cred.Active && !cred.Expired(now) {
				active[v] = *cred
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// Available reports whether the vault answers health probes as initialized
// and unsealed. Concurrent callers share a single in-flight probe.
func (c *HashicorpClient) Available(ctx context.Context) bool {
	result, err, _ := c.health.Do("health", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.readTimeout)
		defer cancel()
		return c.sys.HealthWithContext(probeCtx)
	})
	if err != nil {
		return false
	}
	health, ok := result.(*api.HealthResponse)
	return ok && health.Initialized && !health.Sealed
}

func (c *HashicorpClient) readCredential(ctx context.Context, clientID string, version int) (*Credential, error) {
	secret, err := c.kv.Get(ctx, c.credentialPath(clientID, version))
	if err != nil {
		return nil, classify(err)
	}

	var cred Credential
	if err := decodeRecord(secret.Data, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *HashicorpClient) writeCredential(ctx context.Context, cred *Credential) error {
	data, err := encodeRecord(cred)
	if err != nil {
		return err
	}
	if _, err := c.kv.Put(ctx, c.credentialPath(cred.ClientID, cred.Version), data); err != nil {
		return classify(err)
	}
	return nil
}

func (c *HashicorpClient) setRotationState(ctx context.Context, clientID string, version int, state RotationState) error {
	cred, err := c.readCredential(ctx, clientID, version)
	if err != nil {
		return err
	}
	cred.RotationState = state
	return c.writeCredential(ctx, cred)
}

func (c *HashicorpClient) readIndex(ctx context.Context, clientID string) (*clientIndex, error) {
	secret, err := c.kv.Get(ctx, c.indexPath(clientID))
	if err != nil {
		return nil, classify(err)
	}

	var idx clientIndex
	if err := decodeRecord(secret.Data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (c *HashicorpClient) updateIndex(ctx context.Context, clientID string, mutate func(*clientIndex) error) error {
	idx, err := c.readIndex(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		idx = &clientIndex{}
	} else if err != nil {
		return err
	}

	if err := mutate(idx); err != nil {
		return err
	}

	data, err := encodeRecord(idx)
	if err != nil {
		return err
	}
	if _, err := c.kv.Put(ctx, c.indexPath(clientID), data); err != nil {
		return classify(err)
	}
	return nil
}

func (idx *clientIndex) hasVersion(v int) bool {
	for _, have := range idx.Versions {
		if have == v {
			return true
		}
	}
	return false
}

func (idx *clientIndex) addVersion(v int) {
	if !idx.hasVersion(v) {
		idx.Versions = append(idx.Versions, v)
		sort.Ints(idx.Versions)
	}
}

func (idx *clientIndex) removeVersion(v int) {
	kept := idx.Versions[:0]
	for _, have := range idx.Versions {
		if have != v {
			kept = append(kept, have)
		}
	}
	idx.Versions = kept
}

// withRetry runs op, retrying only unavailability with exponential backoff
// and jitter. Every other failure is permanent.
func (c *HashicorpClient) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	if c.retryInterval > 0 {
		bo.InitialInterval = c.retryInterval
	}
	if c.retryMulti > 1 {
		bo.Multiplier = c.retryMulti
	}

	attempts := c.retryCount
	if attempts < 0 {
		attempts = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// classify maps vault API failures onto the package's error kinds. Anything
// that looks like network or server trouble becomes ErrUnavailable so the
// retry policy can act on it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrPermission) {
		return err
	}
	if errors.Is(err, api.ErrSecretNotFound) {
		return errors.Join(ErrNotFound, err)
	}

	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == 404:
			return errors.Join(ErrNotFound, err)
		case respErr.StatusCode == 403:
			return errors.Join(ErrPermission, err)
		default:
			return errors.Join(ErrUnavailable, err)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return errors.Join(ErrUnavailable, err)
	}
	return errors.Join(ErrUnavailable, err)
}

// encodeRecord converts a record to the map form KV v2 stores, going
// through JSON so field names match the documented storage layout.
func encodeRecord(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return data, nil
}

// decodeRecord converts KV v2 response data back into a record.
func decodeRecord(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Join(ErrInvalidCredential, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrInvalidCredential, err)
	}
	return nil
}

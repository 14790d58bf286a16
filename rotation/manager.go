package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/achocks0/payment-gateway/core/logger"
	"github.com/achocks0/payment-gateway/metrics"
	"github.com/achocks0/payment-gateway/notify"
	"github.com/achocks0/payment-gateway/pkg/crypto"
	"github.com/achocks0/payment-gateway/token"
	"github.com/achocks0/payment-gateway/vault"
)

const newSecretLength = 32

// entry pairs a rotation with its serialization lock and scheduler
// bookkeeping. All state-machine mutations of one rotation happen under
// its own mutex; the manager mutex only guards the registry maps.
type entry struct {
	mu           sync.Mutex
	rotation     Rotation
	deprecatedAt time.Time
	attempts     int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock injects a fake clock for tests.
func WithClock(clock clockwork.Clock) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithNotifier sets the lifecycle event sink. Defaults to notify.Nop.
func WithNotifier(n notify.Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mx }
}

// WithFallbackCache sets the degraded-mode credential cache to purge when
// a rotation retires the old secret.
func WithFallbackCache(fc *vault.FallbackCache) ManagerOption {
	return func(m *Manager) { m.fallback = fc }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log.With(logger.Component("rotation")) }
}

// Manager owns every rotation object. It is the single writer of
// credential records in the vault; the authentication path only reads.
type Manager struct {
	creds    vault.Client
	tokens   token.Store
	fallback *vault.FallbackCache
	notifier notify.Notifier
	metrics  *metrics.Metrics
	clock    clockwork.Clock
	log      *slog.Logger
	cfg      Config

	mu       sync.RWMutex
	byID     map[string]*entry
	byClient map[string]*entry // non-terminal rotation per client, at most one
}

// NewManager creates a rotation manager.
func NewManager(creds vault.Client, tokens token.Store, cfg Config, opts ...ManagerOption) *Manager {
	if cfg.TransitionPeriod <= 0 {
		cfg.TransitionPeriod = time.Hour
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	m := &Manager{
		creds:    creds,
		tokens:   tokens,
		notifier: notify.Nop{},
		clock:    clockwork.NewRealClock(),
		log:      slog.Default().With(logger.Component("rotation")),
		cfg:      cfg,
		byID:     make(map[string]*entry),
		byClient: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitiateRequest carries the parameters of a rotation initiation.
type InitiateRequest struct {
	ClientID         string
	Reason           string
	TransitionPeriod time.Duration
	// Force cancels an in-flight rotation for the client instead of
	// returning ErrConflict.
	Force bool
}

// Initiate starts a rotation: generates a new secret, stores its hash as
// a new credential version, opens the dual-active window, and registers
// the rotation in dual_active state. The plaintext new secret is returned
// exactly once and never stored or logged.
func (m *Manager) Initiate(ctx context.Context, req InitiateRequest) (*Rotation, string, error) {
	if req.ClientID == "" {
		return nil, "", fmt.Errorf("%w: empty client id", ErrUnknownClient)
	}
	window := req.TransitionPeriod
	if window <= 0 {
		window = m.cfg.TransitionPeriod
	}

	if err := m.reserveClient(ctx, req.ClientID, req.Force); err != nil {
		return nil, "", err
	}
	// The reservation below is released on every failure path so a failed
	// initiation does not wedge the client.
	release := true
	defer func() {
		if release {
			m.releaseClient(req.ClientID)
		}
	}()

	versions, err := m.creds.ActiveVersions(ctx, req.ClientID)
	if err != nil {
		return nil, "", fmt.Errorf("read active versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, "", fmt.Errorf("%w: %s has no active credential", ErrUnknownClient, req.ClientID)
	}
	oldVersion, current := newestVersion(versions)

	secret, err := crypto.SecureRandomString(newSecretLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	hashed, err := crypto.HashCredential(secret)
	if err != nil {
		return nil, "", fmt.Errorf("hash secret: %w", err)
	}

	newVersion := oldVersion + 1
	now := m.clock.Now().UTC()
	if err := m.creds.StoreNewVersion(ctx, &vault.Credential{
		ClientID:      req.ClientID,
		HashedSecret:  hashed,
		Active:        true,
		RotationState: vault.RotationNone,
		Permissions:   current.Permissions,
		CreatedAt:     now,
	}, newVersion); err != nil {
		return nil, "", fmt.Errorf("store new version: %w", err)
	}

	if err := m.creds.ConfigureTransition(ctx, req.ClientID, oldVersion, newVersion, window); err != nil {
		// Roll back the orphaned version; best effort, the vault may be
		// the thing that is failing.
		if rmErr := m.creds.RemoveVersion(ctx, req.ClientID, newVersion); rmErr != nil {
			m.log.ErrorContext(ctx, "rollback of unconfigured credential version failed",
				logger.ClientID(req.ClientID), logger.Error(rmErr))
		}
		return nil, "", fmt.Errorf("configure transition: %w", err)
	}

	e := &entry{rotation: Rotation{
		RotationID:       uuid.NewString(),
		ClientID:         req.ClientID,
		CurrentState:     StateInitiated,
		TargetState:      StateNewActive,
		OldVersion:       oldVersion,
		NewVersion:       newVersion,
		TransitionPeriod: window,
		Reason:           req.Reason,
		StartedAt:        now,
	}}

	m.mu.Lock()
	m.byID[e.rotation.RotationID] = e
	m.byClient[req.ClientID] = e
	m.mu.Unlock()
	release = false

	m.emit(ctx, notify.EventStarted, e.rotation, "")
	m.log.InfoContext(ctx, "rotation initiated",
		logger.RotationID(e.rotation.RotationID),
		logger.ClientID(req.ClientID),
		slog.Int("old_version", oldVersion),
		slog.Int("new_version", newVersion),
		logger.Duration(window))

	// Both versions already authenticate, so the machine moves straight
	// to dual_active.
	m.transition(ctx, e, StateDualActive, "")
	rot := e.snapshot()
	return &rot, secret, nil
}

// Get returns a rotation by id.
func (m *Manager) Get(id string) (*Rotation, error) {
	m.mu.RLock()
	e, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rot := e.snapshot()
	return &rot, nil
}

// ByClient returns every rotation recorded for a client, newest first.
func (m *Manager) ByClient(clientID string) []Rotation {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.byID))
	for _, e := range m.byID {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Rotation, 0, 2)
	for _, e := range entries {
		if rot := e.snapshot(); rot.ClientID == clientID && rot.RotationID != "" {
			out = append(out, rot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Active returns every non-terminal rotation.
func (m *Manager) Active() []Rotation {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.byClient))
	for _, e := range m.byClient {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Rotation, 0, len(entries))
	for _, e := range entries {
		if rot := e.snapshot(); !rot.Completed() && rot.RotationID != "" {
			out = append(out, rot)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Advance moves a rotation one step along the lifecycle graph. Advancing
// to the current state is a no-op, so operator retries are idempotent.
func (m *Manager) Advance(ctx context.Context, id string, target State) (*Rotation, error) {
	m.mu.RLock()
	e, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rotation.CurrentState == target {
		rot := e.rotation
		return &rot, nil
	}
	if e.rotation.CurrentState.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, e.rotation.CurrentState)
	}
	if !CanTransition(e.rotation.CurrentState, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.rotation.CurrentState, target)
	}

	if err := m.applyLocked(ctx, e, target, ""); err != nil {
		return nil, err
	}
	rot := e.rotation
	return &rot, nil
}

// Complete drives a rotation through its remaining forward states to
// new_active.
func (m *Manager) Complete(ctx context.Context, id string) (*Rotation, error) {
	m.mu.RLock()
	e, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rotation.CurrentState == StateNewActive {
		rot := e.rotation
		return &rot, nil
	}
	if e.rotation.CurrentState.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, e.rotation.CurrentState)
	}

	for !e.rotation.CurrentState.Terminal() {
		if err := m.applyLocked(ctx, e, next[e.rotation.CurrentState], ""); err != nil {
			return nil, err
		}
	}
	rot := e.rotation
	return &rot, nil
}

// Cancel marks a rotation failed, rolling back the unpromoted new
// version and purging tokens minted during the rotation.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (*Rotation, error) {
	m.mu.RLock()
	e, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rotation.CurrentState.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, e.rotation.CurrentState)
	}
	if err := m.applyLocked(ctx, e, StateFailed, reason); err != nil {
		return nil, err
	}
	rot := e.rotation
	return &rot, nil
}

// CheckProgress advances every rotation whose window has elapsed. Vault
// failures are retried on later ticks up to the configured bound, after
// which the rotation is marked failed. Called by the Scheduler.
func (m *Manager) CheckProgress(ctx context.Context) {
	m.mu.RLock()
	due := make([]*entry, 0, len(m.byClient))
	for _, e := range m.byClient {
		due = append(due, e)
	}
	m.mu.RUnlock()

	now := m.clock.Now()
	for _, e := range due {
		m.progressOne(ctx, e, now)
	}
}

func (m *Manager) progressOne(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var target State
	switch e.rotation.CurrentState {
	case StateDualActive:
		if now.Before(e.rotation.StartedAt.Add(e.rotation.TransitionPeriod)) {
			return
		}
		target = StateOldDeprecated
	case StateOldDeprecated:
		if now.Before(e.deprecatedAt.Add(m.grace(e.rotation.TransitionPeriod))) {
			return
		}
		target = StateNewActive
	default:
		return
	}

	if err := m.applyLocked(ctx, e, target, ""); err != nil {
		e.attempts++
		m.log.WarnContext(ctx, "scheduled rotation advancement failed",
			logger.RotationID(e.rotation.RotationID),
			logger.ClientID(e.rotation.ClientID),
			logger.RetryCount(e.attempts),
			logger.Error(err))
		if e.attempts > m.cfg.MaxRetries {
			msg := fmt.Sprintf("advancement to %s failed after %d attempts", target, e.attempts)
			if failErr := m.applyLocked(ctx, e, StateFailed, msg); failErr != nil {
				m.log.ErrorContext(ctx, "failed to mark rotation failed",
					logger.RotationID(e.rotation.RotationID), logger.Error(failErr))
			}
		}
		return
	}
	e.attempts = 0
}

// grace is how long a rotation lingers in old_deprecated before the
// scheduler retires the old secret: one monitor interval, but never more
// than a quarter of the transition window.
func (m *Manager) grace(window time.Duration) time.Duration {
	g := m.cfg.MonitorInterval
	if quarter := window / 4; quarter < g {
		g = quarter
	}
	return g
}

// applyLocked performs the vault mutations of one transition and, on
// success, records the new state. Caller holds e.mu.
func (m *Manager) applyLocked(ctx context.Context, e *entry, target State, message string) error {
	rot := e.rotation
	switch target {
	case StateDualActive:
		// Vault work already done during initiation.

	case StateOldDeprecated:
		// The old secret still authenticates; tokens stay valid.
		if err := m.creds.SetRotationState(ctx, rot.ClientID, rot.OldVersion, vault.RotationOldDeprecated); err != nil {
			return fmt.Errorf("deprecate old version: %w", err)
		}
		e.deprecatedAt = m.clock.Now().UTC()

	case StateNewActive:
		if err := m.creds.DisableVersion(ctx, rot.ClientID, rot.OldVersion); err != nil {
			return fmt.Errorf("disable old version: %w", err)
		}
		m.purgeTokens(ctx, rot.ClientID)

	case StateFailed:
		m.rollback(ctx, rot)

	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rot.CurrentState, target)
	}

	m.transitionLocked(ctx, e, target, message)
	return nil
}

// rollback undoes a failed rotation: the unpromoted new version is
// removed, the old version's marker is cleared, and tokens minted during
// the rotation are purged. Every step is best effort.
func (m *Manager) rollback(ctx context.Context, rot Rotation) {
	if err := m.creds.RemoveVersion(ctx, rot.ClientID, rot.NewVersion); err != nil {
		m.log.ErrorContext(ctx, "rollback: removing new credential version failed",
			logger.RotationID(rot.RotationID), logger.ClientID(rot.ClientID), logger.Error(err))
	}
	if err := m.creds.SetRotationState(ctx, rot.ClientID, rot.OldVersion, vault.RotationNone); err != nil {
		m.log.ErrorContext(ctx, "rollback: clearing rotation marker failed",
			logger.RotationID(rot.RotationID), logger.ClientID(rot.ClientID), logger.Error(err))
	}
	m.purgeTokens(ctx, rot.ClientID)
}

func (m *Manager) purgeTokens(ctx context.Context, clientID string) {
	if m.fallback != nil {
		m.fallback.Invalidate(clientID)
	}
	n, err := m.tokens.DeleteByClientID(ctx, clientID)
	if err != nil {
		m.log.ErrorContext(ctx, "token purge failed", logger.ClientID(clientID), logger.Error(err))
		return
	}
	m.log.InfoContext(ctx, "tokens purged", logger.ClientID(clientID), slog.Int64("count", n))
}

// transition records a state change, taking the entry lock.
func (m *Manager) transition(ctx context.Context, e *entry, target State, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m.transitionLocked(ctx, e, target, message)
}

// transitionLocked records the state change and emits observability
// signals. Caller holds e.mu and has already performed the vault work.
func (m *Manager) transitionLocked(ctx context.Context, e *entry, target State, message string) {
	from := e.rotation.CurrentState
	e.rotation.CurrentState = target
	if message != "" {
		e.rotation.Message = message
	}

	eventType := notify.EventStateChanged
	switch target {
	case StateNewActive:
		e.rotation.CompletedAt = m.clock.Now().UTC()
		e.rotation.Success = true
		eventType = notify.EventCompleted
	case StateFailed:
		e.rotation.CompletedAt = m.clock.Now().UTC()
		e.rotation.Success = false
		eventType = notify.EventFailed
	}

	if target.Terminal() {
		m.mu.Lock()
		if m.byClient[e.rotation.ClientID] == e {
			delete(m.byClient, e.rotation.ClientID)
		}
		m.mu.Unlock()
	}

	if m.metrics != nil {
		m.metrics.RotationTransition(string(from), string(target))
	}
	m.log.InfoContext(ctx, "rotation state changed",
		logger.RotationID(e.rotation.RotationID),
		logger.ClientID(e.rotation.ClientID),
		slog.String("from", string(from)),
		slog.String("to", string(target)))
	m.emit(ctx, eventType, e.rotation, string(from))
}

func (m *Manager) emit(ctx context.Context, t notify.EventType, rot Rotation, from string) {
	m.notifier.Notify(ctx, notify.Event{
		Type:       t,
		RotationID: rot.RotationID,
		ClientID:   rot.ClientID,
		FromState:  from,
		ToState:    string(rot.CurrentState),
		Message:    rot.Message,
		At:         m.clock.Now().UTC(),
	})
}

// reserveClient claims the single non-terminal rotation slot for a
// client. With force set, an in-flight rotation is canceled first.
func (m *Manager) reserveClient(ctx context.Context, clientID string, force bool) error {
	m.mu.Lock()
	existing, busy := m.byClient[clientID]
	if !busy {
		// Placeholder claim so concurrent initiations conflict until the
		// real entry replaces it.
		m.byClient[clientID] = &entry{rotation: Rotation{ClientID: clientID, CurrentState: StateInitiated}}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if !force {
		return fmt.Errorf("%w: client %s", ErrConflict, clientID)
	}
	if existing.rotation.RotationID == "" {
		// Another initiation holds the placeholder; force cannot preempt it.
		return fmt.Errorf("%w: client %s", ErrConflict, clientID)
	}
	if _, err := m.Cancel(ctx, existing.rotation.RotationID, "superseded by forced rotation"); err != nil {
		return fmt.Errorf("cancel in-flight rotation: %w", err)
	}
	return m.reserveClient(ctx, clientID, false)
}

func (m *Manager) releaseClient(clientID string) {
	m.mu.Lock()
	if e, ok := m.byClient[clientID]; ok && e.rotation.RotationID == "" {
		delete(m.byClient, clientID)
	}
	m.mu.Unlock()
}

func (e *entry) snapshot() Rotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rotation
}

func newestVersion(versions map[int]vault.Credential) (int, vault.Credential) {
	best := -1
	for v := range versions {
		if v > best {
			best = v
		}
	}
	return best, versions[best]
}

package rotation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/notify"
	"github.com/achocks0/payment-gateway/pkg/crypto"
	"github.com/achocks0/payment-gateway/rotation"
	"github.com/achocks0/payment-gateway/token"
	"github.com/achocks0/payment-gateway/vault"
)

func seedClient(t *testing.T, creds *vault.MemoryClient, clientID, secret string) {
	t.Helper()
	hashed, err := crypto.HashCredential(secret)
	require.NoError(t, err)
	require.NoError(t, creds.Store(context.Background(), &vault.Credential{
		ClientID:     clientID,
		HashedSecret: hashed,
		Version:      1,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}))
}

type fixture struct {
	creds   *vault.MemoryClient
	tokens  token.Store
	clock   *clockwork.FakeClock
	events  *notify.ChannelTransport
	manager *rotation.Manager
}

func newFixture(t *testing.T, cfg rotation.Config) *fixture {
	t.Helper()
	f := &fixture{
		creds:  vault.NewMemoryClient(),
		tokens: token.NewMemoryStore(),
		clock:  clockwork.NewFakeClock(),
		events: notify.NewChannelTransport(64),
	}
	f.manager = rotation.NewManager(f.creds, f.tokens, cfg,
		rotation.WithClock(f.clock),
		rotation.WithNotifier(syncNotifier{transport: f.events}),
	)
	return f
}

// syncNotifier delivers events inline so tests can assert on them
// without a dispatcher goroutine.
type syncNotifier struct {
	transport *notify.ChannelTransport
}

func (n syncNotifier) Notify(ctx context.Context, event notify.Event) {
	_ = n.transport.Send(ctx, event)
}

func drainEvents(tr *notify.ChannelTransport) []notify.Event {
	var out []notify.Event
	for {
		select {
		case e := <-tr.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestManagerInitiate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("opens a dual-active window with a fresh secret", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		seedClient(t, f.creds, "vendor-a", "old-secret")

		rot, newSecret, err := f.manager.Initiate(ctx, rotation.InitiateRequest{
			ClientID:         "vendor-a",
			Reason:           "scheduled rotation",
			TransitionPeriod: time.Hour,
		})
		require.NoError(t, err)
		require.NotEmpty(t, newSecret)
		assert.NotEqual(t, "old-secret", newSecret)
		assert.Equal(t, rotation.StateDualActive, rot.CurrentState)
		assert.Equal(t, 1, rot.OldVersion)
		assert.Equal(t, 2, rot.NewVersion)
		assert.False(t, rot.Completed())

		// Both versions authenticate during the window.
		versions, err := f.creds.ActiveVersions(ctx, "vendor-a")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.True(t, crypto.VerifyCredential("old-secret", versions[1].HashedSecret))
		assert.True(t, crypto.VerifyCredential(newSecret, versions[2].HashedSecret))
		assert.Equal(t, vault.RotationDualActive, versions[1].RotationState)
		assert.Equal(t, vault.RotationNone, versions[2].RotationState)

		events := drainEvents(f.events)
		require.GreaterOrEqual(t, len(events), 2)
		assert.Equal(t, notify.EventStarted, events[0].Type)
		assert.Equal(t, notify.EventStateChanged, events[1].Type)
	})

	t.Run("second initiation for the same client conflicts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		seedClient(t, f.creds, "vendor-a", "old-secret")

		_, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
		require.NoError(t, err)

		_, _, err = f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
		require.ErrorIs(t, err, rotation.ErrConflict)
	})

	t.Run("concurrent initiations yield exactly one rotation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		seedClient(t, f.creds, "vendor-a", "old-secret")

		const n = 16
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, _, errs[i] = f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
			}(i)
		}
		close(start)
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				require.ErrorIs(t, err, rotation.ErrConflict)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Len(t, f.manager.Active(), 1)
	})

	t.Run("force supersedes the in-flight rotation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		seedClient(t, f.creds, "vendor-a", "old-secret")

		first, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
		require.NoError(t, err)

		second, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a", Force: true})
		require.NoError(t, err)
		assert.NotEqual(t, first.RotationID, second.RotationID)

		got, err := f.manager.Get(first.RotationID)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateFailed, got.CurrentState)
		assert.Equal(t, rotation.StateDualActive, second.CurrentState)
	})

	t.Run("unknown client is rejected before any vault write", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		_, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "ghost"})
		require.Error(t, err)
		assert.Empty(t, f.manager.Active())
	})

	t.Run("vault outage surfaces and releases the client slot", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		seedClient(t, f.creds, "vendor-a", "old-secret")
		f.creds.SetAvailable(false)

		_, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
		require.ErrorIs(t, err, vault.ErrUnavailable)

		// The failure must not leave the client permanently locked.
		f.creds.SetAvailable(true)
		_, _, err = f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
		require.NoError(t, err)
	})
}

func TestManagerAdvance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	initiate := func(t *testing.T, f *fixture) *rotation.Rotation {
		t.Helper()
		seedClient(t, f.creds, "vendor-a", "old-secret")
		rot, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a", TransitionPeriod: time.Hour})
		require.NoError(t, err)
		return rot
	}

	t.Run("deprecating the old version keeps both secrets accepted", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		rot := initiate(t, f)

		require.NoError(t, f.tokens.Save(ctx, &token.Token{
			ClientID: "vendor-a", Value: "tok", JTI: "jti-1",
			IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
		}))

		got, err := f.manager.Advance(ctx, rot.RotationID, rotation.StateOldDeprecated)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateOldDeprecated, got.CurrentState)

		versions, err := f.creds.ActiveVersions(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Len(t, versions, 2)
		assert.Equal(t, vault.RotationOldDeprecated, versions[rot.OldVersion].RotationState)

		// Deprecation must not invalidate outstanding tokens.
		tok, err := f.tokens.GetByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-1", tok.JTI)
	})

	t.Run("completing retires the old version and purges tokens", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		rot := initiate(t, f)

		require.NoError(t, f.tokens.Save(ctx, &token.Token{
			ClientID: "vendor-a", Value: "tok", JTI: "jti-1",
			IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
		}))

		_, err := f.manager.Advance(ctx, rot.RotationID, rotation.StateOldDeprecated)
		require.NoError(t, err)
		got, err := f.manager.Advance(ctx, rot.RotationID, rotation.StateNewActive)
		require.NoError(t, err)

		assert.Equal(t, rotation.StateNewActive, got.CurrentState)
		assert.True(t, got.Success)
		assert.False(t, got.CompletedAt.IsZero())

		versions, err := f.creds.ActiveVersions(ctx, "vendor-a")
		require.NoError(t, err)
		require.Len(t, versions, 1)
		_, onlyNew := versions[rot.NewVersion]
		assert.True(t, onlyNew)

		_, err = f.tokens.GetByClientID(ctx, "vendor-a")
		require.ErrorIs(t, err, token.ErrNotFound)
	})

	t.Run("skipping a state is rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		rot := initiate(t, f)

		_, err := f.manager.Advance(ctx, rot.RotationID, rotation.StateNewActive)
		require.ErrorIs(t, err, rotation.ErrInvalidTransition)
	})

	t.Run("advancing to the current state is a no-op", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		rot := initiate(t, f)

		got, err := f.manager.Advance(ctx, rot.RotationID, rotation.StateDualActive)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateDualActive, got.CurrentState)
	})

	t.Run("terminal rotations are immutable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		rot := initiate(t, f)

		_, err := f.manager.Complete(ctx, rot.RotationID)
		require.NoError(t, err)

		_, err = f.manager.Advance(ctx, rot.RotationID, rotation.StateFailed)
		require.ErrorIs(t, err, rotation.ErrTerminal)
		_, err = f.manager.Cancel(ctx, rot.RotationID, "too late")
		require.ErrorIs(t, err, rotation.ErrTerminal)
	})

	t.Run("unknown rotation id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, rotation.Config{})
		_, err := f.manager.Advance(ctx, "nope", rotation.StateOldDeprecated)
		require.ErrorIs(t, err, rotation.ErrNotFound)
	})
}

func TestManagerComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, rotation.Config{})
	seedClient(t, f.creds, "vendor-a", "old-secret")

	rot, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
	require.NoError(t, err)

	got, err := f.manager.Complete(ctx, rot.RotationID)
	require.NoError(t, err)
	assert.Equal(t, rotation.StateNewActive, got.CurrentState)
	assert.True(t, got.Success)

	// Completing again is idempotent.
	again, err := f.manager.Complete(ctx, rot.RotationID)
	require.NoError(t, err)
	assert.Equal(t, rotation.StateNewActive, again.CurrentState)

	versions, err := f.creds.ActiveVersions(ctx, "vendor-a")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
	assert.Empty(t, f.manager.Active())
}

func TestManagerCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, rotation.Config{})
	seedClient(t, f.creds, "vendor-a", "old-secret")

	rot, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
	require.NoError(t, err)

	require.NoError(t, f.tokens.Save(ctx, &token.Token{
		ClientID: "vendor-a", Value: "tok", JTI: "jti-1",
		IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}))

	got, err := f.manager.Cancel(ctx, rot.RotationID, "operator abort")
	require.NoError(t, err)
	assert.Equal(t, rotation.StateFailed, got.CurrentState)
	assert.False(t, got.Success)
	assert.Equal(t, "operator abort", got.Message)
	assert.False(t, got.CompletedAt.IsZero())

	// The unpromoted version is rolled back and the old marker cleared.
	versions, err := f.creds.ActiveVersions(ctx, "vendor-a")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, vault.RotationNone, versions[rot.OldVersion].RotationState)

	_, err = f.tokens.GetByClientID(ctx, "vendor-a")
	require.ErrorIs(t, err, token.ErrNotFound)

	// The client is free to rotate again.
	_, _, err = f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
	require.NoError(t, err)
}

func TestManagerQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, rotation.Config{})
	seedClient(t, f.creds, "vendor-a", "a-secret")
	seedClient(t, f.creds, "vendor-b", "b-secret")

	first, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
	require.NoError(t, err)
	_, err = f.manager.Complete(ctx, first.RotationID)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	second, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a"})
	require.NoError(t, err)
	_, _, err = f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-b"})
	require.NoError(t, err)

	history := f.manager.ByClient("vendor-a")
	require.Len(t, history, 2)
	assert.Equal(t, second.RotationID, history[0].RotationID)

	active := f.manager.Active()
	assert.Len(t, active, 2)

	_, err = f.manager.Get("missing")
	require.ErrorIs(t, err, rotation.ErrNotFound)
}

func TestManagerCheckProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("advances through the lifecycle as windows elapse", func(t *testing.T) {
		t.Parallel()

		cfg := rotation.Config{TransitionPeriod: time.Hour, MonitorInterval: 30 * time.Second}
		f := newFixture(t, cfg)
		seedClient(t, f.creds, "vendor-a", "old-secret")

		rot, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a", TransitionPeriod: time.Minute})
		require.NoError(t, err)

		// Inside the window nothing moves.
		f.clock.Advance(30 * time.Second)
		f.manager.CheckProgress(ctx)
		got, err := f.manager.Get(rot.RotationID)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateDualActive, got.CurrentState)

		// Window elapsed: old version is deprecated but still accepted.
		f.clock.Advance(40 * time.Second)
		f.manager.CheckProgress(ctx)
		got, err = f.manager.Get(rot.RotationID)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateOldDeprecated, got.CurrentState)
		versions, err := f.creds.ActiveVersions(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Len(t, versions, 2)

		// Grace elapsed: rotation completes, one version remains.
		f.clock.Advance(time.Minute)
		f.manager.CheckProgress(ctx)
		got, err = f.manager.Get(rot.RotationID)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateNewActive, got.CurrentState)
		versions, err = f.creds.ActiveVersions(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Len(t, versions, 1)
	})

	t.Run("marks the rotation failed after retries are exhausted", func(t *testing.T) {
		t.Parallel()

		cfg := rotation.Config{TransitionPeriod: time.Minute, MonitorInterval: 30 * time.Second, MaxRetries: 2}
		f := newFixture(t, cfg)
		seedClient(t, f.creds, "vendor-a", "old-secret")

		rot, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a", TransitionPeriod: time.Minute})
		require.NoError(t, err)

		f.creds.SetAvailable(false)
		f.clock.Advance(2 * time.Minute)

		// Each tick is one failed attempt; one past MaxRetries flips the
		// rotation to failed.
		for i := 0; i < cfg.MaxRetries+1; i++ {
			f.manager.CheckProgress(ctx)
		}

		got, err := f.manager.Get(rot.RotationID)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateFailed, got.CurrentState)
		assert.False(t, got.Success)

		events := drainEvents(f.events)
		require.NotEmpty(t, events)
		assert.Equal(t, notify.EventFailed, events[len(events)-1].Type)
	})

	t.Run("transient outage recovers without failing the rotation", func(t *testing.T) {
		t.Parallel()

		cfg := rotation.Config{TransitionPeriod: time.Minute, MonitorInterval: 30 * time.Second, MaxRetries: 3}
		f := newFixture(t, cfg)
		seedClient(t, f.creds, "vendor-a", "old-secret")

		rot, _, err := f.manager.Initiate(ctx, rotation.InitiateRequest{ClientID: "vendor-a", TransitionPeriod: time.Minute})
		require.NoError(t, err)

		f.creds.SetAvailable(false)
		f.clock.Advance(2 * time.Minute)
		f.manager.CheckProgress(ctx)
		f.manager.CheckProgress(ctx)

		f.creds.SetAvailable(true)
		f.manager.CheckProgress(ctx)

		got, err := f.manager.Get(rot.RotationID)
		require.NoError(t, err)
		assert.Equal(t, rotation.StateOldDeprecated, got.CurrentState)
	})
}

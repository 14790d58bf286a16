package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/token"
)

func makeToken(clientID, jti string, now time.Time, ttl time.Duration) *token.Token {
	return &token.Token{
		ClientID:    clientID,
		Value:       "signed." + jti + ".token",
		JTI:         jti,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		Permissions: []string{"payments:write"},
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reachable by both keys", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		tok := makeToken("vendor-a", "jti-1", clock.Now(), time.Hour)
		require.NoError(t, store.Save(ctx, tok))

		byClient, err := store.GetByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-1", byClient.JTI)

		byJTI, err := store.GetByJTI(ctx, "jti-1")
		require.NoError(t, err)
		assert.Equal(t, tok.Value, byJTI.Value)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()

		store := token.NewMemoryStore()
		_, err := store.GetByClientID(ctx, "nobody")
		require.ErrorIs(t, err, token.ErrNotFound)
		_, err = store.GetByJTI(ctx, "no-such-jti")
		require.ErrorIs(t, err, token.ErrNotFound)
	})

	t.Run("expired token is absent", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", clock.Now(), time.Minute)))

		clock.Advance(time.Minute)
		_, err := store.GetByClientID(ctx, "vendor-a")
		require.ErrorIs(t, err, token.ErrNotFound)
		_, err = store.GetByJTI(ctx, "jti-1")
		require.ErrorIs(t, err, token.ErrNotFound)
	})

	t.Run("newest token wins the client key", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", clock.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-2", clock.Now(), time.Hour)))

		current, err := store.GetByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-2", current.JTI)

		// the superseded token stays valid for in-flight requests
		_, err = store.GetByJTI(ctx, "jti-1")
		require.NoError(t, err)
	})

	t.Run("rejects incomplete or expired tokens", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)

		require.ErrorIs(t, store.Save(ctx, nil), token.ErrInvalidToken)
		require.ErrorIs(t, store.Save(ctx, &token.Token{JTI: "x", Value: "y"}), token.ErrInvalidToken)

		dead := makeToken("vendor-a", "jti-1", clock.Now().Add(-2*time.Hour), time.Hour)
		require.ErrorIs(t, store.Save(ctx, dead), token.ErrInvalidToken)
	})
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delete by client removes every token", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", clock.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-2", clock.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-b", "jti-3", clock.Now(), time.Hour)))

		count, err := store.DeleteByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		_, err = store.GetByJTI(ctx, "jti-1")
		require.ErrorIs(t, err, token.ErrNotFound)
		_, err = store.GetByJTI(ctx, "jti-2")
		require.ErrorIs(t, err, token.ErrNotFound)

		// other clients untouched
		_, err = store.GetByClientID(ctx, "vendor-b")
		require.NoError(t, err)
	})

	t.Run("delete by client is idempotent", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", clock.Now(), time.Hour)))

		count, err := store.DeleteByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = store.DeleteByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})

	t.Run("delete by jti clears hot path only for current token", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", clock.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-2", clock.Now(), time.Hour)))

		require.NoError(t, store.DeleteByJTI(ctx, "jti-1"))
		current, err := store.GetByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-2", current.JTI)

		require.NoError(t, store.DeleteByJTI(ctx, "jti-2"))
		_, err = store.GetByClientID(ctx, "vendor-a")
		require.ErrorIs(t, err, token.ErrNotFound)

		require.NoError(t, store.DeleteByJTI(ctx, "jti-2"))
	})

	t.Run("delete expired reaps stale entries", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClock()
		store := token.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", clock.Now(), time.Minute)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-b", "jti-2", clock.Now(), time.Hour)))

		clock.Advance(2 * time.Minute)
		count, err := store.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		_, err = store.GetByClientID(ctx, "vendor-b")
		require.NoError(t, err)
	})
}

func TestTokenLifetimes(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tok := token.Token{IssuedAt: now, ExpiresAt: now.Add(time.Hour)}

	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(time.Hour)), "expiry instant counts as expired")
	assert.Equal(t, time.Hour, tok.TTL(now))
	assert.Equal(t, time.Duration(0), tok.TTL(now.Add(2*time.Hour)))

	assert.InDelta(t, 1.0, tok.RemainingShare(now), 0.001)
	assert.InDelta(t, 0.5, tok.RemainingShare(now.Add(30*time.Minute)), 0.001)
	assert.InDelta(t, 0.0, tok.RemainingShare(now.Add(time.Hour)), 0.001)
}

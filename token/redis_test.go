package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achocks0/payment-gateway/token"
)

func newRedisStore(t *testing.T) (*token.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return token.NewRedisStore(client), mr
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reachable by both keys", func(t *testing.T) {
		t.Parallel()

		store, _ := newRedisStore(t)
		tok := makeToken("vendor-a", "jti-1", time.Now(), time.Hour)
		require.NoError(t, store.Save(ctx, tok))

		byClient, err := store.GetByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-1", byClient.JTI)
		assert.Equal(t, tok.Value, byClient.Value)

		byJTI, err := store.GetByJTI(ctx, "jti-1")
		require.NoError(t, err)
		assert.Equal(t, "vendor-a", byJTI.ClientID)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()

		store, _ := newRedisStore(t)
		_, err := store.GetByClientID(ctx, "nobody")
		require.ErrorIs(t, err, token.ErrNotFound)
	})

	t.Run("keys expire with the token", func(t *testing.T) {
		t.Parallel()

		store, mr := newRedisStore(t)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", time.Now(), time.Minute)))

		mr.FastForward(2 * time.Minute)
		_, err := store.GetByClientID(ctx, "vendor-a")
		require.ErrorIs(t, err, token.ErrNotFound)
		_, err = store.GetByJTI(ctx, "jti-1")
		require.ErrorIs(t, err, token.ErrNotFound)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		t.Parallel()

		store, _ := newRedisStore(t)
		dead := makeToken("vendor-a", "jti-1", time.Now().Add(-2*time.Hour), time.Hour)
		require.ErrorIs(t, store.Save(ctx, dead), token.ErrInvalidToken)
	})
}

func TestRedisStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delete by client removes every token", func(t *testing.T) {
		t.Parallel()

		store, _ := newRedisStore(t)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", time.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-2", time.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-b", "jti-3", time.Now(), time.Hour)))

		count, err := store.DeleteByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		_, err = store.GetByJTI(ctx, "jti-1")
		require.ErrorIs(t, err, token.ErrNotFound)
		_, err = store.GetByClientID(ctx, "vendor-a")
		require.ErrorIs(t, err, token.ErrNotFound)

		_, err = store.GetByClientID(ctx, "vendor-b")
		require.NoError(t, err)
	})

	t.Run("delete by client is idempotent", func(t *testing.T) {
		t.Parallel()

		store, _ := newRedisStore(t)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", time.Now(), time.Hour)))

		count, err := store.DeleteByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = store.DeleteByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})

	t.Run("delete by jti keeps newer current token", func(t *testing.T) {
		t.Parallel()

		store, _ := newRedisStore(t)
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-1", time.Now(), time.Hour)))
		require.NoError(t, store.Save(ctx, makeToken("vendor-a", "jti-2", time.Now(), time.Hour)))

		require.NoError(t, store.DeleteByJTI(ctx, "jti-1"))
		current, err := store.GetByClientID(ctx, "vendor-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-2", current.JTI)

		require.NoError(t, store.DeleteByJTI(ctx, "jti-2"))
		_, err = store.GetByClientID(ctx, "vendor-a")
		require.ErrorIs(t, err, token.ErrNotFound)

		require.NoError(t, store.DeleteByJTI(ctx, "jti-2"))
	})
}

package token

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisClientKeyPrefix = "token:client:"
	redisJTIKeyPrefix    = "token:jti:"
	redisIndexSuffix     = ":index"
)

// RedisStore is a shared Store for multi-instance deployments. Token TTLs
// map onto Redis key expiry; a per-client index set supports invalidation
// of every live token for a client. The index carries the same TTL as the
// newest token, so it disappears with the last token it names.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisClientKey(clientID string) string { return redisClientKeyPrefix + clientID }
func redisJTIKey(jti string) string         { return redisJTIKeyPrefix + jti }
func redisIndexKey(clientID string) string  { return redisClientKeyPrefix + clientID + redisIndexSuffix }

// GetByClientID returns the client's current token.
func (s *RedisStore) GetByClientID(ctx context.Context, clientID string) (*Token, error) {
	return s.get(ctx, redisClientKey(clientID))
}

// GetByJTI returns a live token by its unique identifier.
func (s *RedisStore) GetByJTI(ctx context.Context, jti string) (*Token, error) {
	return s.get(ctx, redisJTIKey(jti))
}

func (s *RedisStore) get(ctx context.Context, key string) (*Token, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, errors.Join(ErrNotFound, err)
	}
	if t.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &t, nil
}

// Save stores the token under both keys with TTL equal to its remaining
// lifetime and registers it in the client's index set.
func (s *RedisStore) Save(ctx context.Context, t *Token) error {
	if t == nil || t.ClientID == "" || t.JTI == "" || t.Value == "" {
		return ErrInvalidToken
	}
	ttl := t.TTL(time.Now())
	if ttl <= 0 {
		return ErrInvalidToken
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return errors.Join(ErrSaveToken, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisClientKey(t.ClientID), payload, ttl)
	pipe.Set(ctx, redisJTIKey(t.JTI), payload, ttl)
	pipe.SAdd(ctx, redisIndexKey(t.ClientID), t.JTI)
	pipe.Expire(ctx, redisIndexKey(t.ClientID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrSaveToken, err)
	}
	return nil
}

// DeleteByClientID removes every token of the client, returning how many
// live tokens were dropped.
func (s *RedisStore) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	jtis, err := s.client.SMembers(ctx, redisIndexKey(clientID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, errors.Join(ErrDeleteToken, err)
	}

	var count int64
	if len(jtis) > 0 {
		keys := make([]string, 0, len(jtis))
		for _, jti := range jtis {
			keys = append(keys, redisJTIKey(jti))
		}
		count, err = s.client.Del(ctx, keys...).Result()
		if err != nil {
			return 0, errors.Join(ErrDeleteToken, err)
		}
	}
	if err := s.client.Del(ctx, redisClientKey(clientID), redisIndexKey(clientID)).Err(); err != nil {
		return count, errors.Join(ErrDeleteToken, err)
	}
	return count, nil
}

// DeleteByJTI removes a single token. Absent tokens are a no-op.
func (s *RedisStore) DeleteByJTI(ctx context.Context, jti string) error {
	raw, err := s.client.Get(ctx, redisJTIKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Join(ErrDeleteToken, err)
	}

	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		// Undecodable entries are still removed.
		return s.client.Del(ctx, redisJTIKey(jti)).Err()
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisJTIKey(jti))
	pipe.SRem(ctx, redisIndexKey(t.ClientID), jti)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrDeleteToken, err)
	}

	// Drop the hot-path entry only when it points at the revoked token.
	current, err := s.get(ctx, redisClientKey(t.ClientID))
	if err == nil && current.JTI == jti {
		if err := s.client.Del(ctx, redisClientKey(t.ClientID)).Err(); err != nil {
			return errors.Join(ErrDeleteToken, err)
		}
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys server-side.
func (s *RedisStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

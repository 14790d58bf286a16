// Package redis provides Redis client initialization and health checking
// for the gateway's distributed token store.
//
// Connect validates the connection URL, creates a go-redis client, and
// verifies connectivity with retried pings before returning. Both
// redis:// and rediss:// (TLS) schemes are supported.
//
//	cfg := config.MustLoad[redis.Config]()
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	store := token.NewRedisStore(client)
//
// Healthcheck returns a probe function for readiness endpoints.
package redis

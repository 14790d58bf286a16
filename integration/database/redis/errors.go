package redis

import "errors"

// Connection errors surfaced to the binaries that wire the shared token
// store. Matched with errors.Is to decide whether startup proceeds
// without redis or aborts.
var (
	ErrEmptyConnectionURL           = errors.New("redis connection URL is empty")
	ErrFailedToParseRedisConnString = errors.New("invalid redis connection string")
	ErrRedisNotReady                = errors.New("redis not ready before the connect timeout")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)

package vault

import "time"

// Config holds vault connectivity settings with environment variable support.
type Config struct {
	Address string `env:"VAULT_ADDR" envDefault:"http://127.0.0.1:8200"`
	Token   string `env:"VAULT_TOKEN"`
	// Mount is the KV v2 mount holding credential records.
	Mount string `env:"VAULT_MOUNT" envDefault:"secret"`
	// PathPrefix namespaces credential records inside the mount.
	PathPrefix string `env:"VAULT_PATH_PREFIX" envDefault:"payment-gateway"`

	ConnectTimeout time.Duration `env:"VAULT_CONNECT_TIMEOUT" envDefault:"3s"`
	ReadTimeout    time.Duration `env:"VAULT_READ_TIMEOUT" envDefault:"5s"`

	// RetryCount bounds retries of unavailable responses; not-found and
	// permission failures are never retried.
	RetryCount        int           `env:"VAULT_RETRY_COUNT" envDefault:"3"`
	RetryInterval     time.Duration `env:"VAULT_RETRY_INTERVAL" envDefault:"200ms"`
	RetryBackoffMulti float64       `env:"VAULT_RETRY_BACKOFF_MULTIPLIER" envDefault:"2.0"`

	// FallbackTTL bounds staleness of the degraded-mode credential cache.
	FallbackTTL      time.Duration `env:"VAULT_FALLBACK_TTL" envDefault:"5m"`
	FallbackCapacity int           `env:"VAULT_FALLBACK_CAPACITY" envDefault:"1024"`
}

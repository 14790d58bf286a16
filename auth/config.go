package auth

import "time"

// Config holds token minting settings with environment variable support.
type Config struct {
	TokenLifetime time.Duration `env:"TOKEN_LIFETIME" envDefault:"1h"`

	// RenewalThreshold is the near-expiry window: a cached token with this
	// much life or less is re-minted instead of reused.
	RenewalThreshold time.Duration `env:"TOKEN_RENEWAL_THRESHOLD" envDefault:"5m"`
	Issuer           string        `env:"TOKEN_ISSUER" envDefault:"payment-eapi"`
	Audience         string        `env:"TOKEN_AUDIENCE" envDefault:"payment-sapi"`
}

package server

import "time"

const (
	// DefaultReadTimeout bounds reading the request; vendor payment
	// payloads are small, so 10s is generous.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout must cover a vault round-trip with retries plus
	// the downstream relay before the first response byte.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultIdleTimeout keeps vendor keep-alive connections warm between
	// payment bursts.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout lets in-flight relays finish on SIGTERM.
	DefaultShutdownTimeout = 20 * time.Second

	// DefaultMaxHeaderBytes bounds request headers; credential and
	// correlation headers fit in a fraction of this.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB
)

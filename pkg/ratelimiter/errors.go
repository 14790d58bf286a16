package ratelimiter

import "errors"

var (
	// ErrInvalidConfig is returned when capacity, rate, or interval is not positive.
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")
	// ErrInvalidTokenCount is returned when consuming a non-positive token count.
	ErrInvalidTokenCount = errors.New("token count must be positive")
)

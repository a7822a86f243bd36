package rate

import "errors"

var (
	// ErrRedisUnavailable is returned when the Redis backend cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidPolicy is returned for a non-positive limit or window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)

package rate

import "errors"

var (
	// ErrRateLimited is returned once the attempt budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

package cache

import "errors"

// Sentinel errors for the board cache.
var (
	ErrCorrupt    = errors.New("cache: corrupt entry")
	ErrInvalidTTL = errors.New("cache: ttl must be positive")
)

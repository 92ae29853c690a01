package port

import (
	"context"
	"time"
)

// Cache is the key-value contract used for volatile lookups such as the
// presence mirror. Implementations must be safe for concurrent use and honor
// caller-driven timeouts via the context.
type Cache interface {
	// Get fetches the value for key, returning ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many were removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies connectivity with the backend.
	Ping(ctx context.Context) error

	Close() error
}

// ErrMiss signals a cache miss in a typed way so callers can tell misses
// apart from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }

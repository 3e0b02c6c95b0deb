// Package cache holds query results keyed by entity and drops them when their data changes.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value store behind the coordinator. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns ErrMiss when key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A zero or negative ttl never expires.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many existed. Every key's generation advances,
	// present or not.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Generation returns the invalidation counter of key, 0 if it was never deleted.
	Generation(ctx context.Context, key string) (int64, error)

	// SetIfGeneration stores value only while the generation of key still equals gen.
	// It reports whether the value was stored.
	SetIfGeneration(ctx context.Context, key string, value string, ttl time.Duration, gen int64) (bool, error)

	// Keys lists the stored keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss, distinct from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }

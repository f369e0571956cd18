// Package cache provides byte caches used to front reference data lookups.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under string keys with a TTL
type Cache interface {
	// Get returns the value and true on a hit
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys
	Delete(ctx context.Context, keys ...string) error
	// Close releases resources
	Close() error
}

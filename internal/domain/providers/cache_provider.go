package providers

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache, returning ErrCacheMiss for absent keys
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache; a zero ttl keeps it until deleted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes values from cache
	Delete(ctx context.Context, keys ...string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the cache surface the rest of the codebase programs against.
// Values are stored as JSON so any backend can rehydrate typed destinations.
type Service interface {
	// Set stores value under key for the given TTL. A non-positive TTL
	// falls back to the backend default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get unmarshals the stored value into dest, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete drops the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Close releases backend resources.
	Close() error
}

// Key joins a prefix with colon-separated parts into a cache key,
// e.g. Key("context", "BTCUSDT", "1h") -> "context:BTCUSDT:1h".
func Key(prefix string, parts ...interface{}) string {
	key := prefix
	for _, p := range parts {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}

package cache

import (
	"context"
	"time"
)

// Cache stores serialized responses keyed by request hash. A miss is not
// an error: Get returns hit=false with a nil error.
//
// Implementations must be safe for concurrent use; the fragment service
// calls them from every request goroutine.
type Cache interface {
	// Get retrieves a value. hit is false when the key is absent or expired.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}

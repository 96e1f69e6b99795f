package resultcache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidKey is returned for empty cache keys
var ErrInvalidKey = errors.New("resultcache: key cannot be empty")

// Store keeps encoded dispatch results by key
type Store interface {
	// Get returns the value for key and whether it was found
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key; a zero ttl never expires
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key
	Delete(ctx context.Context, key string) error
}

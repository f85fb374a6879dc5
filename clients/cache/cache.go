package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("value not found in the cache")

// NoExpiration keeps a value until it is deleted.
const NoExpiration time.Duration = -1

// Cache stores raw bytes by key. It backs the retrieve-result cache of the batch gateway.
type Cache interface {
	Set(ctx context.Context, key string, data []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMany looks up every key in one call. Keys that are not found are
	// absent from the result.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Delete(ctx context.Context, key string) error
	Healthcheck(ctx context.Context) error
}

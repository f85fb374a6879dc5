package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is a process local Cache, used when no redis endpoint is
// configured and in tests.
type InMemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data       []byte
	expiration time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheItem),
	}
}

func (c *InMemoryCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var expiry time.Time
	if expiration != NoExpiration {
		expiry = time.Now().Add(expiration)
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	c.data[key] = cacheItem{
		data:       stored,
		expiration: expiry,
	}

	return nil
}

func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, ok := c.data[key]
	if !ok || item.expired(time.Now()) {
		return nil, ErrNotFound
	}

	return item.data, nil
}

// GetMany returns the unexpired values stored under keys
func (c *InMemoryCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		item, ok := c.data[key]
		if !ok || item.expired(now) {
			continue
		}
		result[key] = item.data
	}

	return result, nil
}

// GetAll returns every unexpired item in the cache
func (c *InMemoryCache) GetAll(ctx context.Context) map[string][]byte {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	result := make(map[string][]byte, len(c.data))
	for key, item := range c.data {
		if item.expired(now) {
			continue
		}
		result[key] = item.data
	}

	return result
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (item cacheItem) expired(now time.Time) bool {
	return !item.expiration.IsZero() && now.After(item.expiration)
}

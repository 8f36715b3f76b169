package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache holds decoded vectors in process memory with TTL expiry.
type MemoryCache struct {
	vectors *gocache.Cache
}

// NewMemoryCache creates a memory-only vector cache.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		vectors: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (c *MemoryCache) Get(key string) ([]float32, bool) {
	if v, found := c.vectors.Get(key); found {
		return v.([]float32), true
	}
	return nil, false
}

func (c *MemoryCache) Set(key string, vector []float32, ttl time.Duration) error {
	c.vectors.Set(key, vector, ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.vectors.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.vectors.Flush()
	return nil
}

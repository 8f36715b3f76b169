package cache

import "time"

// LayeredCache keeps hot vectors in memory over a disk layer that survives
// restarts. Disk hits are promoted into the memory layer on read.
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory-over-disk vector cache.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]float32, bool) {
	if vector, found := c.memory.Get(key); found {
		return vector, true
	}

	if vector, found := c.disk.Get(key); found {
		// Promote with the memory layer's default TTL.
		_ = c.memory.Set(key, vector, 0)
		return vector, true
	}

	return nil, false
}

func (c *LayeredCache) Set(key string, vector []float32, ttl time.Duration) error {
	if err := c.memory.Set(key, vector, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, vector, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

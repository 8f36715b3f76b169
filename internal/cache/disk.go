package cache

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DiskCache persists embedding vectors across process restarts so a stable
// guidance corpus is only embedded once per model version.
//
// File layout: an 8-byte little-endian expiry timestamp (unix nanoseconds)
// followed by the vector as little-endian float32 words.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk-backed vector cache rooted at dir.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
	}
}

func (c *DiskCache) Get(key string) ([]float32, bool) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if len(data) < 8 || (len(data)-8)%4 != 0 {
		// Corrupt or truncated entry.
		_ = os.Remove(path)
		return nil, false
	}

	expiry := time.Unix(0, int64(binary.LittleEndian.Uint64(data)))
	if time.Now().After(expiry) {
		_ = os.Remove(path)
		return nil, false
	}

	return decodeVector(data[8:]), true
}

func (c *DiskCache) Set(key string, vector []float32, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	buf := make([]byte, 8, 8+4*len(vector))
	binary.LittleEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
	buf = append(buf, encodeVector(vector)...)

	if err := os.WriteFile(c.path(key), buf, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	return os.Remove(c.path(key))
}

func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".vec")
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector assumes the caller has already checked length alignment.
func decodeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector
}

package cache

import (
	"os"
	"testing"
	"time"
)

func TestEmbeddingKey_ModelIsPartOfKey(t *testing.T) {
	k1 := EmbeddingKey("text-embedding-3-small", "AE guidance text")
	k2 := EmbeddingKey("text-embedding-3-large", "AE guidance text")
	if k1 == k2 {
		t.Error("Expected different keys for different embedding models")
	}

	if k1 != EmbeddingKey("text-embedding-3-small", "AE guidance text") {
		t.Error("Expected key generation to be deterministic")
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	key := EmbeddingKey("test-model", "doc")
	if err := c.Set(key, []float32{0.25, -1.5, 0}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	vector, found := c.Get(key)
	if !found {
		t.Fatal("Expected cache hit")
	}
	if len(vector) != 3 || vector[0] != 0.25 || vector[1] != -1.5 || vector[2] != 0 {
		t.Errorf("Unexpected vector: %v", vector)
	}

	if _, found := c.Get("missing"); found {
		t.Error("Expected cache miss for unknown key")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	key := EmbeddingKey("test-model", "doc")
	vector := []float32{0.25, -1.5, 0, 3.14159}
	if err := c.Set(key, vector, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found := c.Get(key)
	if !found {
		t.Fatal("Expected disk cache hit")
	}
	if len(got) != len(vector) {
		t.Fatalf("Expected %d components, got %d", len(vector), len(got))
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("Component %d: expected %v, got %v", i, vector[i], got[i])
		}
	}

	if err := c.Set("expired", vector, -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, found := c.Get("expired"); found {
		t.Error("Expected expired entry to miss")
	}
}

func TestDiskCache_CorruptEntryMisses(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := os.WriteFile(c.path("bad"), []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, found := c.Get("bad"); found {
		t.Error("Expected truncated entry to miss")
	}
	if _, err := os.Stat(c.path("bad")); !os.IsNotExist(err) {
		t.Error("Expected corrupt entry to be removed")
	}
}

func TestLayeredCache_DiskPromotion(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	key := EmbeddingKey("test-model", "doc")
	if err := c.Set(key, []float32{1, 2}, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh layered cache over the same directory should find the vector on
	// disk and promote it.
	c2 := NewLayeredCache(time.Minute, dir, time.Hour)
	vector, found := c2.Get(key)
	if !found {
		t.Fatal("Expected disk cache hit after restart")
	}
	if len(vector) != 2 || vector[0] != 1 || vector[1] != 2 {
		t.Errorf("Unexpected vector: %v", vector)
	}
}

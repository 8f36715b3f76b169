package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores document embedding vectors. Implementations never fail a
// lookup loudly: a miss and a corrupt entry look the same to the caller,
// which simply re-embeds.
type Cache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vector []float32, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EmbeddingKey generates a cache key for one document text under a specific
// embedding model. The model name is part of the key so switching models
// never reuses stale vectors.
func EmbeddingKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return "triage:v1:" + hex.EncodeToString(hash[:])
}

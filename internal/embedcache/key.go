// Package embedcache memoizes text vectors per model identifier in front of a
// model.TextModel.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func contentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// memoModelName scopes memo rows to the backend and the exact cache identifier.
// Backend names never contain ':', so distinct pairs never collide.
func memoModelName(backend, identifier string) string {
	if backend == "" {
		backend = "unknown"
	}
	return backend + ":" + identifier
}

func buildCacheKey(identifier, text string) string {
	return "embed:" + identifier + ":" + contentHash(text)
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}

func checkCount(got, want int) error {
	if got != want {
		return fmt.Errorf("encoder returned %d vectors for %d inputs", got, want)
	}
	return nil
}

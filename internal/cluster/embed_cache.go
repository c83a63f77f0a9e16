package cluster

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// embeddingCacheSize is the fixed LRU budget from the resource model (§5):
// an in-process map keyed by text hash, shared and guarded by its own lock,
// independent of any incident lock.
const embeddingCacheSize = 1024

// embeddingCache memoizes embedding vectors by a hash of their source text.
// It is its own lock domain: callers never hold an incident lock while
// touching it, matching the "release locks during network I/O" rule.
type embeddingCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, []float32]
}

func newEmbeddingCache() *embeddingCache {
	c, err := lru.New[string, []float32](embeddingCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which embeddingCacheSize never is.
		panic(err)
	}
	return &embeddingCache{cache: c}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *embeddingCache) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(hashText(text))
}

func (c *embeddingCache) put(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(hashText(text), vec)
}

package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the embedding cache. Entries are evicted LRU;
// a re-embed after eviction is correct, just slower.
const DefaultCacheSize = 8192

// CachingProvider wraps a Provider with a bounded content-addressed cache.
//
// Keys are the SHA-256 of the input text, so the cache is shared across
// grounding runs and across templates that reuse obligation text. Upserts are
// idempotent; the underlying LRU is safe for concurrent writers.
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCachingProvider wraps the given provider with an LRU cache of the given
// size. Size <= 0 uses DefaultCacheSize.
func NewCachingProvider(inner Provider, size int) (*CachingProvider, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner provider required", ErrInvalidConfig)
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for the text's content hash, embedding and
// caching on miss.
func (c *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	key := ContentHash(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Len reports the number of cached embeddings.
func (c *CachingProvider) Len() int {
	return c.cache.Len()
}

// ContentHash returns the hex-encoded SHA-256 of the text, used as the
// content-addressable cache key.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

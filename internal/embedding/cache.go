package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Cache stores fingerprints by content key.
type Cache interface {
	// Get returns the cached vector for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]float32, bool, error)
	// Put stores vec under key.
	Put(ctx context.Context, key string, vec []float32) error
}

// CacheStats is a snapshot of cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// CachedProvider serves fingerprints from a cache before asking the wrapped provider.
// Cache failures are logged and treated as misses; provider failures are returned.
type CachedProvider struct {
	inner  Provider
	cache  Cache
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewCachedProvider wraps p with cache.
func NewCachedProvider(p Provider, cache Cache) *CachedProvider {
	return &CachedProvider{inner: p, cache: cache}
}

// Embed returns the cached fingerprint for text or computes and stores it.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.inner.Model(), text)

	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.errors.Add(1)
		log.Warn().Err(err).Msg("Fingerprint cache read failed")
	} else if ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	// Invalid vectors are never cached; the caller rejects them.
	if Validate(vec, c.inner.Dimensions()) == nil {
		if err := c.cache.Put(ctx, key, vec); err != nil {
			c.errors.Add(1)
			log.Warn().Err(err).Msg("Fingerprint cache write failed")
		}
	}
	return vec, nil
}

// Dimensions returns the wrapped provider's dimension.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// Model returns the wrapped provider's model.
func (c *CachedProvider) Model() string { return c.inner.Model() }

// Stats returns hit/miss counters.
func (c *CachedProvider) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}

// Close closes the wrapped provider and cache when they hold resources.
func (c *CachedProvider) Close() error {
	var errs []error
	if closer, ok := c.inner.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if closer, ok := c.cache.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// CacheKey derives the cache key for text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "feeddedup:fp:" + model + ":" + hex.EncodeToString(sum[:])
}

// MemoryCache is a fixed-size LRU cache.
type MemoryCache struct {
	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
	maxSize int
}

type memoryEntry struct {
	key string
	vec []float32
}

// NewMemoryCache creates an LRU cache holding up to maxSize vectors.
// A non-positive maxSize selects 4096.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &MemoryCache{
		order:   list.New(),
		entries: make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Get returns the vector for key and marks it recently used.
func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	m.order.MoveToFront(el)
	return el.Value.(*memoryEntry).vec, true, nil
}

// Put stores vec, evicting the least recently used entry when full.
func (m *MemoryCache) Put(_ context.Context, key string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		el.Value.(*memoryEntry).vec = vec
		m.order.MoveToFront(el)
		return nil
	}

	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, vec: vec})
	for m.order.Len() > m.maxSize {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// Len returns the number of cached vectors.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

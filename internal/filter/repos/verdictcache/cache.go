// Package verdictcache memoizes match verdicts per message text.
package verdictcache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/keyword-filter/internal/filter/services/filter"
)

// verdictCache is an LRU-backed implementation of filter.VerdictCache.
// It tracks basic metrics: hits, misses, and evictions.
type verdictCache struct {
	lru       *lru.Cache[string, filter.CachedVerdict]
	size      int
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache is a no-op VerdictCache used when size <= 0.
type disabledCache struct{}

// New creates a VerdictCache with the given capacity. If size <= 0, a
// disabled no-op cache is returned that always misses.
func New(size int) (filter.VerdictCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}

	vc := &verdictCache{size: size}
	// NewWithEvict observes evictions, including Purge-induced ones.
	cache, err := lru.NewWithEvict(size, func(_ string, _ filter.CachedVerdict) {
		atomic.AddUint64(&vc.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	vc.lru = cache
	return vc, nil
}

// Get looks up a verdict by message. When found, increments hits; otherwise increments misses.
func (c *verdictCache) Get(message string) (filter.CachedVerdict, bool) {
	if val, ok := c.lru.Get(message); ok {
		atomic.AddUint64(&c.hits, 1)
		return val, true
	}
	atomic.AddUint64(&c.misses, 1)
	return filter.CachedVerdict{}, false
}

// Put stores a verdict by message.
func (c *verdictCache) Put(message string, v filter.CachedVerdict) {
	c.lru.Add(message, v)
}

// Len returns the number of entries in the cache.
func (c *verdictCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *verdictCache) Purge() { c.lru.Purge() }

// Stats returns a snapshot of the cache counters.
func (c *verdictCache) Stats() filter.CacheStats {
	return filter.CacheStats{
		Capacity:  c.size,
		Size:      c.lru.Len(),
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		Evictions: atomic.LoadUint64(&c.evictions),
	}
}

func (d *disabledCache) Get(string) (filter.CachedVerdict, bool) {
	return filter.CachedVerdict{}, false
}

func (d *disabledCache) Put(string, filter.CachedVerdict) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Purge() {}

func (d *disabledCache) Stats() filter.CacheStats { return filter.CacheStats{} }

var _ filter.VerdictCache = (*verdictCache)(nil)
var _ filter.VerdictCache = (*disabledCache)(nil)

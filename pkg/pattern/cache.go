package pattern

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// DefaultCacheSize is the number of compiled templates kept by DefaultCache.
const DefaultCacheSize = 1024

// DefaultCache is shared by matchers that compile templates on first use.
var DefaultCache = NewCache(DefaultCacheSize)

type cacheKey struct {
	lang   syntax.Language
	source string
}

// cacheEntry stores failed compilations too, so a broken template is
// reported once per eviction instead of re-parsed for every node.
type cacheEntry struct {
	pattern *Pattern
	err     error
}

// Cache is a bounded, concurrency-safe LRU of compiled templates.
type Cache struct {
	entries *lru.Cache[cacheKey, cacheEntry]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache holding up to size templates. Non-positive sizes
// fall back to DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}

	entries, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}

	return &Cache{entries: entries}
}

// Compile returns the compiled template for (lang, src), compiling it on a miss.
func (c *Cache) Compile(lang syntax.Language, src string) (*Pattern, error) {
	key := cacheKey{lang: lang, source: src}

	if entry, ok := c.entries.Get(key); ok {
		c.hits.Add(1)

		return entry.pattern, entry.err
	}

	c.misses.Add(1)

	compiled, err := New(lang, src)
	c.entries.Add(key, cacheEntry{pattern: compiled, err: err})

	return compiled, err
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns the number of cache hits and misses.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

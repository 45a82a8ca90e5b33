// Package cache holds parsed source units in memory so that identical file
// contents are parsed once per process.
package cache

import (
	"crypto/sha256"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

// DefaultParseCacheSize is the default memory budget of the parse cache (64 MB).
const DefaultParseCacheSize = 64 * 1024 * 1024

// maxEntries bounds the entry count; the byte budget is normally hit first.
const maxEntries = 1 << 16

// Key identifies a source by the SHA-256 of its contents.
type Key [sha256.Size]byte

// KeyOf returns the cache key for content.
func KeyOf(content []byte) Key {
	return sha256.Sum256(content)
}

// ParseCache is an LRU of parsed units bounded by the total size of their
// source text. Cached values are shared between compilations and must not be
// mutated.
type ParseCache struct {
	mu      sync.Mutex
	entries *lru.Cache[Key, *importmodel.Parsed]
	size    int64
	maxSize int64
	hits    int64
	misses  int64
}

// NewParseCache creates a cache holding at most maxSize bytes of source text.
// A non-positive maxSize selects DefaultParseCacheSize.
func NewParseCache(maxSize int64) *ParseCache {
	if maxSize <= 0 {
		maxSize = DefaultParseCacheSize
	}

	c := &ParseCache{maxSize: maxSize}

	entries, err := lru.NewWithEvict(maxEntries, c.evicted)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}

	c.entries = entries

	return c
}

// evicted runs inside Put and Clear, with c.mu held.
func (c *ParseCache) evicted(_ Key, parsed *importmodel.Parsed) {
	c.size -= int64(len(parsed.Text))
}

// Get returns the parsed unit for key, or nil.
func (c *ParseCache) Get(key Key) *importmodel.Parsed {
	c.mu.Lock()
	defer c.mu.Unlock()

	parsed, ok := c.entries.Get(key)
	if !ok {
		c.misses++

		return nil
	}

	c.hits++

	return parsed
}

// Put stores parsed under key, evicting least recently used units until the
// source text fits. Units larger than the whole budget are not cached.
func (c *ParseCache) Put(key Key, parsed *importmodel.Parsed) {
	if parsed == nil {
		return
	}

	size := int64(len(parsed.Text))
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries.Contains(key) {
		c.entries.Get(key)

		return
	}

	for c.size+size > c.maxSize {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			break
		}
	}

	c.entries.Add(key, parsed)
	c.size += size
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// Stats returns cache statistics.
func (c *ParseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Entries:     c.entries.Len(),
		CurrentSize: c.size,
		MaxSize:     c.maxSize,
	}
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

// Clear removes all entries from the cache. Statistics are kept.
func (c *ParseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.size = 0
}

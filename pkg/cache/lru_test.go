package cache_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/pkg/cache"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

func parsedOf(size int) *importmodel.Parsed {
	return &importmodel.Parsed{Text: bytes.Repeat([]byte("x"), size)}
}

func TestParseCacheGetPut(t *testing.T) {
	t.Parallel()

	c := cache.NewParseCache(1024)
	key := cache.KeyOf([]byte("export const a = 1;"))

	assert.Nil(t, c.Get(key))

	parsed := parsedOf(10)
	c.Put(key, parsed)

	assert.Same(t, parsed, c.Get(key))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.001)
}

func TestParseCacheEvictsWhenFull(t *testing.T) {
	t.Parallel()

	c := cache.NewParseCache(100)

	first := cache.KeyOf([]byte("first"))
	second := cache.KeyOf([]byte("second"))
	third := cache.KeyOf([]byte("third"))

	c.Put(first, parsedOf(40))
	c.Put(second, parsedOf(40))
	c.Put(third, parsedOf(40))

	stats := c.Stats()
	require.Equal(t, 2, stats.Entries)
	assert.LessOrEqual(t, stats.CurrentSize, int64(100))
	assert.NotNil(t, c.Get(third))
}

func TestParseCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := cache.NewParseCache(100)

	first := cache.KeyOf([]byte("first"))
	second := cache.KeyOf([]byte("second"))
	third := cache.KeyOf([]byte("third"))

	c.Put(first, parsedOf(40))
	c.Put(second, parsedOf(40))
	require.NotNil(t, c.Get(first))

	c.Put(third, parsedOf(40))

	assert.NotNil(t, c.Get(first))
	assert.Nil(t, c.Get(second))
	assert.NotNil(t, c.Get(third))
	assert.Equal(t, int64(80), c.Stats().CurrentSize)
}

func TestParseCacheSkipsOversized(t *testing.T) {
	t.Parallel()

	c := cache.NewParseCache(10)
	key := cache.KeyOf([]byte("big"))

	c.Put(key, parsedOf(11))
	assert.Nil(t, c.Get(key))
}

func TestParseCacheClear(t *testing.T) {
	t.Parallel()

	c := cache.NewParseCache(0)
	key := cache.KeyOf([]byte("a"))

	c.Put(key, parsedOf(1))
	c.Clear()

	assert.Nil(t, c.Get(key))
	assert.Zero(t, c.Stats().CurrentSize)
	assert.Equal(t, int64(cache.DefaultParseCacheSize), c.Stats().MaxSize)
}

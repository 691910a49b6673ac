package nominatim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := LoadCache(path)
	assert.Zero(t, c.Len())
	assert.False(t, c.Dirty())

	c.Put("Pour Taproom", "201 N Front St", 34.2352, -77.9490)
	assert.True(t, c.Dirty())
	require.NoError(t, c.Save())
	assert.False(t, c.Dirty())

	reloaded := LoadCache(path)
	coords, ok := reloaded.Get("Pour Taproom", "201 N Front St")
	require.True(t, ok)
	assert.Equal(t, 34.2352, coords.Lat)
	assert.Equal(t, -77.9490, coords.Lon)
}

func TestCache_KeyNormalization(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "cache.json"))
	c.Put("  Pour Taproom ", " 201 N Front St ", 34.2, -77.9)

	_, ok := c.Get("pour taproom", "201 n front st")
	assert.True(t, ok)
}

func TestLoadCache_MissingFileStartsEmpty(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "absent.json"))
	assert.Zero(t, c.Len())
	assert.False(t, c.Dirty())
}

func TestLoadCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{half a json"), 0o644))

	c := LoadCache(path)
	assert.Zero(t, c.Len())

	// The empty cache is still usable and saveable.
	c.Put("a", "b", 1, 2)
	require.NoError(t, c.Save())
	_, ok := LoadCache(path).Get("a", "b")
	assert.True(t, ok)
}

func TestCache_SaveSkippedWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := LoadCache(path)
	c.Put("a", "b", 1, 2)
	require.NoError(t, c.Save())

	// A clean cache never rewrites the file.
	reloaded := LoadCache(path)
	require.NoError(t, os.Remove(path))
	require.NoError(t, reloaded.Save())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCache_SaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.json")

	c := LoadCache(path)
	c.Put("a", "b", 1, 2)
	require.NoError(t, c.Save())

	_, ok := LoadCache(path).Get("a", "b")
	assert.True(t, ok)
}

func TestCache_Prune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	seed := LoadCache(path)
	seed.Put("in bounds", "addr", 34.2, -77.9)
	seed.Put("out of bounds", "addr", 51.5, -0.12)
	require.NoError(t, seed.Save())

	c := LoadCache(path)
	require.False(t, c.Dirty())

	removed := c.Prune(func(coords Coords) bool {
		return coords.Lat > 33.75 && coords.Lat < 34.65
	})
	assert.Equal(t, 1, removed)
	assert.True(t, c.Dirty())
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Save())
	_, ok := LoadCache(path).Get("out of bounds", "addr")
	assert.False(t, ok)
}

func TestCache_PruneNothingStaysClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	seed := LoadCache(path)
	seed.Put("a", "b", 34.2, -77.9)
	require.NoError(t, seed.Save())

	c := LoadCache(path)
	removed := c.Prune(func(Coords) bool { return true })
	assert.Zero(t, removed)
	assert.False(t, c.Dirty())
}

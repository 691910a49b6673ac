package nominatim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Coords is one cached geocoding result.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Cache is a file-backed map from "name|address" to coordinates. It is
// loaded once, mutated in memory, and written back only when dirty.
// Not safe for concurrent use; callers serialize pipeline runs.
type Cache struct {
	path    string
	entries map[string]Coords
	dirty   bool
}

// CacheKey builds the lookup key for a venue.
func CacheKey(name, address string) string {
	return fmt.Sprintf("%s|%s",
		strings.ToLower(strings.TrimSpace(name)),
		strings.ToLower(strings.TrimSpace(address)),
	)
}

// LoadCache reads the cache file at path. A missing or corrupt file
// yields an empty cache, never an error: the cache only saves requests.
func LoadCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]Coords)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("nominatim: cache unreadable, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return c
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		zap.L().Warn("nominatim: cache corrupt, starting empty",
			zap.String("path", path), zap.Error(err))
		c.entries = make(map[string]Coords)
	}
	return c
}

// Get returns the cached coordinates for a venue, if present.
func (c *Cache) Get(name, address string) (Coords, bool) {
	coords, ok := c.entries[CacheKey(name, address)]
	return coords, ok
}

// Put stores coordinates for a venue and marks the cache dirty.
func (c *Cache) Put(name, address string, lat, lon float64) {
	c.entries[CacheKey(name, address)] = Coords{Lat: lat, Lon: lon}
	c.dirty = true
}

// Prune drops every entry the keep function rejects and returns how
// many were removed. Removals mark the cache dirty.
func (c *Cache) Prune(keep func(Coords) bool) int {
	removed := 0
	for key, coords := range c.entries {
		if !keep(coords) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Dirty reports whether the cache has unsaved changes.
func (c *Cache) Dirty() bool {
	return c.dirty
}

// Save writes the cache back to disk if it changed since loading.
func (c *Cache) Save() error {
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "nominatim: marshal cache")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return eris.Wrap(err, "nominatim: create cache dir")
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return eris.Wrap(err, "nominatim: write cache")
	}

	c.dirty = false
	zap.L().Debug("nominatim: cache saved",
		zap.String("path", c.path), zap.Int("entries", len(c.entries)))
	return nil
}

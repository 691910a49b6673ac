// Package geocode resolves venue names and addresses to coordinates
// inside a fixed service area, caching results across runs.
package geocode

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
	"github.com/jrklein8/ILMFoodNBrew/pkg/nominatim"
)

// Searcher is the geocoding backend. *nominatim.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, bounds *geom.Bounds) ([]nominatim.Place, error)
}

// Options configure a Resolver.
type Options struct {
	Bounds      *geom.Bounds
	State       string   // appended to address queries, e.g. "NC"
	AnchorCity  string   // paired with bare venue names, e.g. "Wilmington"
	LocalPlaces []string // place names that earn an address query a retry
}

// Stats counts the outcomes of one resolve pass.
type Stats struct {
	CacheHits   int // resolved from cache, no network call
	Geocoded    int // resolved via the backend
	Missed      int // all strategies exhausted
	Pruned      int // out-of-bounds cache entries dropped
	Invalidated int // out-of-bounds location coordinates cleared
}

// Resolver fills in missing coordinates on a location dictionary. A
// lookup runs an ordered chain of query formulations and accepts the
// first candidate inside the bounding box; out-of-bounds coordinates
// are never kept, whether they arrive from the backend, the cache, or
// an earlier run.
type Resolver struct {
	searcher    Searcher
	cache       *nominatim.Cache
	bounds      *geom.Bounds
	state       string
	anchorCity  string
	localPlaces []string
}

// NewResolver creates a Resolver over the given backend and cache.
func NewResolver(searcher Searcher, cache *nominatim.Cache, opts Options) *Resolver {
	places := make([]string, 0, len(opts.LocalPlaces))
	for _, p := range opts.LocalPlaces {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			places = append(places, p)
		}
	}
	return &Resolver{
		searcher:    searcher,
		cache:       cache,
		bounds:      opts.Bounds,
		state:       strings.TrimSpace(opts.State),
		anchorCity:  strings.TrimSpace(opts.AnchorCity),
		localPlaces: places,
	}
}

// Resolve sets coordinates on every location it can. Unresolvable
// locations keep null coordinates; only context cancellation aborts the
// pass. The cache is mutated but not saved here.
func (r *Resolver) Resolve(ctx context.Context, locations map[string]*model.LocationInfo) (Stats, error) {
	var stats Stats

	stats.Pruned = r.cache.Prune(func(c nominatim.Coords) bool {
		return InBounds(r.bounds, c.Lat, c.Lon)
	})
	if stats.Pruned > 0 {
		zap.L().Warn("geocode: dropped out-of-bounds cache entries", zap.Int("count", stats.Pruned))
	}

	keys := make([]string, 0, len(locations))
	for key := range locations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		loc := locations[key]

		if loc.HasCoordinates() && !InBounds(r.bounds, *loc.Latitude, *loc.Longitude) {
			zap.L().Warn("geocode: clearing out-of-bounds coordinates",
				zap.String("location", loc.Name),
				zap.Float64("lat", *loc.Latitude),
				zap.Float64("lon", *loc.Longitude))
			loc.Latitude, loc.Longitude = nil, nil
			stats.Invalidated++
		}
		if loc.HasCoordinates() {
			continue
		}

		if coords, ok := r.cache.Get(loc.Name, loc.Address); ok {
			lat, lon := coords.Lat, coords.Lon
			loc.Latitude, loc.Longitude = &lat, &lon
			stats.CacheHits++
			continue
		}

		if err := r.lookup(ctx, loc, &stats); err != nil {
			return stats, err
		}
	}

	zap.L().Info("geocode: resolve pass finished",
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("geocoded", stats.Geocoded),
		zap.Int("missed", stats.Missed),
		zap.Int("pruned", stats.Pruned))
	return stats, nil
}

// attempt is one query formulation in the strategy chain.
type attempt struct {
	strategy string
	query    string
}

// attempts builds the ordered chain for a location. Addresses that
// mention a known local place get the same query twice; the upstream
// service intermittently misses on the first try.
func (r *Resolver) attempts(loc *model.LocationInfo) []attempt {
	var out []attempt

	addr := strings.TrimSpace(loc.Address)
	if addr != "" {
		withState := addr
		if r.state != "" {
			withState = addr + ", " + r.state
		}
		out = append(out, attempt{"address", withState})
		if r.mentionsLocalPlace(addr) {
			out = append(out, attempt{"address retry", withState})
		}
	}

	if name := strings.TrimSpace(loc.Name); name != "" {
		query := name
		if r.anchorCity != "" {
			query = name + ", " + r.anchorCity
		}
		out = append(out, attempt{"name with city", query})
	}

	if addr != "" {
		out = append(out, attempt{"bare address", addr})
	}
	return out
}

func (r *Resolver) mentionsLocalPlace(addr string) bool {
	addr = strings.ToLower(addr)
	for _, place := range r.localPlaces {
		if strings.Contains(addr, place) {
			return true
		}
	}
	return false
}

// lookup runs the strategy chain for one location. Backend errors count
// as a miss for that strategy unless the context is done.
func (r *Resolver) lookup(ctx context.Context, loc *model.LocationInfo, stats *Stats) error {
	for _, att := range r.attempts(loc) {
		places, err := r.searcher.Search(ctx, att.query, r.bounds)
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(err, "geocode: lookup aborted")
			}
			zap.L().Warn("geocode: strategy failed",
				zap.String("location", loc.Name),
				zap.String("strategy", att.strategy),
				zap.Error(err))
			continue
		}

		place, ok := r.firstInBounds(places)
		if !ok {
			continue
		}

		lat, lon := place.Latitude, place.Longitude
		loc.Latitude, loc.Longitude = &lat, &lon
		r.cache.Put(loc.Name, loc.Address, lat, lon)
		stats.Geocoded++
		zap.L().Info("geocode: resolved",
			zap.String("location", loc.Name),
			zap.String("strategy", att.strategy),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon))
		return nil
	}

	stats.Missed++
	zap.L().Info("geocode: location unresolved", zap.String("location", loc.Name))
	return nil
}

func (r *Resolver) firstInBounds(places []nominatim.Place) (nominatim.Place, bool) {
	for _, p := range places {
		if InBounds(r.bounds, p.Latitude, p.Longitude) {
			return p, true
		}
	}
	return nominatim.Place{}, false
}

// Package pipeline orchestrates one scrape run end to end: locate the
// newest tracker article, extract the weekly schedule, resolve venue
// coordinates, and publish the dataset artifact.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/article"
	"github.com/jrklein8/ILMFoodNBrew/internal/config"
	"github.com/jrklein8/ILMFoodNBrew/internal/fetcher"
	"github.com/jrklein8/ILMFoodNBrew/internal/geocode"
	"github.com/jrklein8/ILMFoodNBrew/internal/model"
	"github.com/jrklein8/ILMFoodNBrew/internal/schedule"
	"github.com/jrklein8/ILMFoodNBrew/internal/store"
	"github.com/jrklein8/ILMFoodNBrew/pkg/nominatim"
)

// Pipeline runs the fetch → parse → geocode → publish sequence. Runs
// are strictly sequential; callers must not start a second Run while
// one is in flight (the serve scheduler and refresh endpoint share a
// single-flight guard for this reason).
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	fetcher  *fetcher.Fetcher
	locator  *article.Locator
	extract  *schedule.Extractor
	searcher geocode.Searcher
	clock    clockwork.Clock
}

// New creates a Pipeline with all dependencies. A nil clock falls back
// to the real one.
func New(
	cfg *config.Config,
	st store.Store,
	f *fetcher.Fetcher,
	loc *article.Locator,
	ex *schedule.Extractor,
	searcher geocode.Searcher,
	clock clockwork.Clock,
) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		fetcher:  f,
		locator:  loc,
		extract:  ex,
		searcher: searcher,
		clock:    clock,
	}
}

// Run executes a full scrape and returns the published dataset. Every
// run is recorded in the store ledger; a failed phase marks the run
// failed and aborts without touching the dataset artifact or the
// geocode cache file.
func (p *Pipeline) Run(ctx context.Context) (*model.ScrapedData, error) {
	start := p.clock.Now()

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting scrape")

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}
	fail := func(cause error) {
		if failErr := p.store.FailRun(ctx, run.ID, cause.Error()); failErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(failErr))
		}
	}

	// ===== Fetch =====
	setStatus(model.RunStatusFetching)

	indexHTML, err := p.fetcher.Page(ctx, p.cfg.Source.IndexURL)
	if err != nil {
		err = eris.Wrap(err, "pipeline: fetch index")
		fail(err)
		return nil, err
	}

	articleURL, err := p.locator.FindLatest(indexHTML)
	if err != nil {
		err = eris.Wrap(err, "pipeline: locate article")
		fail(err)
		return nil, err
	}
	log.Info("pipeline: located tracker article", zap.String("url", articleURL))

	// Record the source as soon as it is known so a later failure still
	// shows which article the run was working on.
	if srcErr := p.store.UpdateRunSource(ctx, run.ID, articleURL); srcErr != nil {
		log.Warn("pipeline: failed to record source", zap.Error(srcErr))
	}

	articleHTML, err := p.fetcher.Page(ctx, articleURL)
	if err != nil {
		err = eris.Wrap(err, "pipeline: fetch article")
		fail(err)
		return nil, err
	}

	// ===== Parse =====
	setStatus(model.RunStatusParsing)

	result, err := p.extract.Parse(articleHTML, p.clock.Now())
	if err != nil {
		err = eris.Wrap(err, "pipeline: parse article")
		fail(err)
		return nil, err
	}
	log.Info("pipeline: schedule parsed",
		zap.String("date_range", result.DateRange),
		zap.Int("locations", len(result.Locations)),
		zap.Int("trucks", len(result.Trucks)),
	)

	// ===== Geocode =====
	setStatus(model.RunStatusGeocoding)

	cache := nominatim.LoadCache(p.cfg.Geocode.CachePath)
	resolver := geocode.NewResolver(p.searcher, cache, geocode.Options{
		Bounds: geocode.Bounds(
			p.cfg.Geocode.MinLat, p.cfg.Geocode.MaxLat,
			p.cfg.Geocode.MinLon, p.cfg.Geocode.MaxLon,
		),
		State:       p.cfg.Geocode.State,
		AnchorCity:  p.cfg.Geocode.AnchorCity,
		LocalPlaces: p.cfg.Geocode.LocalPlaces,
	})

	geoStats, err := resolver.Resolve(ctx, result.Locations)
	if err != nil {
		// Aborted mid-resolution. The on-disk cache keeps its loaded
		// contents; partial results are never persisted.
		err = eris.Wrap(err, "pipeline: geocode")
		fail(err)
		return nil, err
	}
	if saveErr := cache.Save(); saveErr != nil {
		log.Warn("pipeline: failed to save geocode cache", zap.Error(saveErr))
	}

	// ===== Publish =====
	data := p.assemble(articleURL, result)

	if err := writeArtifact(p.cfg.Data.Path, data); err != nil {
		fail(err)
		return nil, err
	}

	if _, archErr := p.store.ArchiveAppearances(ctx, run.ID, data.Appearances); archErr != nil {
		log.Warn("pipeline: failed to archive appearances", zap.Error(archErr))
	}

	stats := &model.RunStats{
		Locations:   len(result.Locations),
		Trucks:      len(result.Trucks),
		Appearances: len(data.Appearances),
		Geocoded:    geoStats.Geocoded,
		CacheHits:   geoStats.CacheHits,
		Missed:      geoStats.Missed,
		DurationMs:  p.clock.Since(start).Milliseconds(),
	}
	if doneErr := p.store.CompleteRun(ctx, run.ID, data.DateRange, stats); doneErr != nil {
		log.Warn("pipeline: failed to record completion", zap.Error(doneErr))
	}

	log.Info("pipeline: scrape complete",
		zap.String("date_range", data.DateRange),
		zap.Int("trucks", stats.Trucks),
		zap.Int("appearances", stats.Appearances),
		zap.Int("geocoded", stats.Geocoded),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("missed", stats.Missed),
		zap.Int64("duration_ms", stats.DurationMs),
	)

	return data, nil
}

// assemble flattens per-truck appearances into the dataset's flat list
// and propagates each venue's resolved address and coordinates onto
// every appearance that references it. Venues the location section
// never mentioned stay without address or coordinates.
func (p *Pipeline) assemble(sourceURL string, result *schedule.Result) *model.ScrapedData {
	var appearances []model.TruckAppearance
	for _, truck := range result.Trucks {
		appearances = append(appearances, truck.Appearances...)
	}

	for i := range appearances {
		loc, ok := result.Locations[model.NormalizeName(appearances[i].LocationName)]
		if !ok {
			continue
		}
		appearances[i].Address = loc.Address
		appearances[i].Latitude = loc.Latitude
		appearances[i].Longitude = loc.Longitude
	}

	return &model.ScrapedData{
		ScrapedAt:   p.clock.Now().UTC(),
		SourceURL:   sourceURL,
		DateRange:   result.DateRange,
		Locations:   result.Locations,
		Trucks:      result.Trucks,
		Appearances: appearances,
	}
}

// writeArtifact publishes the dataset with a same-directory temp file
// and rename, so readers never observe a half-written artifact.
func writeArtifact(path string, data *model.ScrapedData) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal dataset")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create data dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "pipeline: create temp dataset")
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrap(err, "pipeline: write temp dataset")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrap(err, "pipeline: close temp dataset")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "pipeline: publish dataset %s", path)
	}
	return nil
}

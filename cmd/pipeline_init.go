package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/article"
	"github.com/jrklein8/ILMFoodNBrew/internal/fetcher"
	"github.com/jrklein8/ILMFoodNBrew/internal/pipeline"
	"github.com/jrklein8/ILMFoodNBrew/internal/schedule"
	"github.com/jrklein8/ILMFoodNBrew/internal/store"
	"github.com/jrklein8/ILMFoodNBrew/pkg/nominatim"
)

// pipelineEnv holds the initialized store and pipeline shared by the
// scrape and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for the given mode, sets up the store,
// page fetcher, schedule extractor, and geocoding client, and builds
// the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	f := fetcher.New(fetcher.Options{
		UserAgent:  cfg.Source.UserAgent,
		Timeout:    time.Duration(cfg.Source.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Source.MaxRetries,
	})
	locator := article.NewLocator(cfg.Source.Keyword)

	manual := schedule.DefaultManualLocations()
	if cfg.Data.LocationsFile != "" {
		loaded, loadErr := schedule.LoadManualLocations(cfg.Data.LocationsFile)
		if loadErr != nil {
			zap.L().Warn("curated locations file not loaded", zap.Error(loadErr))
		} else {
			// Operator entries go first so they win over the built-ins.
			manual = append(loaded, schedule.DefaultManualLocations()...)
			zap.L().Info("curated locations loaded",
				zap.String("path", cfg.Data.LocationsFile),
				zap.Int("count", len(loaded)),
			)
		}
	}
	extractor := schedule.NewExtractor(cfg.Source.ScheduleMarker, cfg.Source.LocationMarker, manual)

	geoOpts := []nominatim.Option{
		nominatim.WithRateInterval(cfg.Geocode.RequestInterval),
		nominatim.WithMaxResults(cfg.Geocode.MaxResults),
	}
	if cfg.Geocode.BaseURL != "" {
		geoOpts = append(geoOpts, nominatim.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.UserAgent != "" {
		geoOpts = append(geoOpts, nominatim.WithUserAgent(cfg.Geocode.UserAgent))
	}
	if cfg.Geocode.Country != "" {
		geoOpts = append(geoOpts, nominatim.WithCountryCodes(cfg.Geocode.Country))
	}
	geocoder := nominatim.NewClient(geoOpts...)

	p := pipeline.New(cfg, st, f, locator, extractor, geocoder, nil)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// Package monitoring watches the run ledger and the published dataset,
// and raises webhook alerts when scrapes stop producing fresh data.
package monitoring

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
	"github.com/jrklein8/ILMFoodNBrew/internal/store"
)

// recentRunsLimit bounds how much of the ledger a snapshot reads. At one
// scrape every six hours this covers several months.
const recentRunsLimit = 500

// MetricsSnapshot holds a point-in-time view of scraper health.
type MetricsSnapshot struct {
	// Run counts within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsActive   int     `json:"runs_active"`
	FailRate     float64 `json:"fail_rate"`

	// Geocoding outcomes summed over completed runs in the window.
	Geocoded  int     `json:"geocoded"`
	CacheHits int     `json:"cache_hits"`
	Missed    int     `json:"missed"`
	MissRate  float64 `json:"miss_rate"`

	// LastCompleteAt is the newest complete run on record, window or not.
	LastCompleteAt time.Time `json:"last_complete_at"`

	// Dataset artifact freshness.
	DatasetPresent    bool      `json:"dataset_present"`
	DatasetModifiedAt time.Time `json:"dataset_modified_at"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run ledger and the dataset artifact.
type Collector struct {
	store    store.Store
	dataPath string
}

// NewCollector creates a new metrics collector. dataPath is the location
// of the published dataset artifact.
func NewCollector(st store.Store, dataPath string) *Collector {
	return &Collector{store: st, dataPath: dataPath}
}

// Collect gathers a snapshot of scraper health over the given lookback
// window. A lookback of zero or less defaults to 24 hours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}

	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: recentRunsLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.Status == model.RunStatusComplete && r.CreatedAt.After(snap.LastCompleteAt) {
			snap.LastCompleteAt = r.CreatedAt
		}
		if r.CreatedAt.Before(cutoff) {
			continue
		}

		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			if r.Stats != nil {
				snap.Geocoded += r.Stats.Geocoded
				snap.CacheHits += r.Stats.CacheHits
				snap.Missed += r.Stats.Missed
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsActive++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if lookups := snap.Geocoded + snap.CacheHits + snap.Missed; lookups > 0 {
		snap.MissRate = float64(snap.Missed) / float64(lookups)
	}

	fi, err := os.Stat(c.dataPath)
	switch {
	case err == nil:
		snap.DatasetPresent = true
		snap.DatasetModifiedAt = fi.ModTime().UTC()
	case !errors.Is(err, os.ErrNotExist):
		return nil, eris.Wrapf(err, "monitoring: stat dataset %s", c.dataPath)
	}

	return snap, nil
}

package model

import "time"

// RunStatus represents the current state of a scrape run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusFetching  RunStatus = "fetching"
	RunStatusParsing   RunStatus = "parsing"
	RunStatusGeocoding RunStatus = "geocoding"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single scrape run.
type Run struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url"`
	DateRange string    `json:"date_range"`
	Status    RunStatus `json:"status"`
	Stats     *RunStats `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStats summarizes what a completed run produced.
type RunStats struct {
	Locations   int   `json:"locations"`
	Trucks      int   `json:"trucks"`
	Appearances int   `json:"appearances"`
	Geocoded    int   `json:"geocoded"`
	CacheHits   int   `json:"cache_hits"`
	Missed      int   `json:"missed"`
	DurationMs  int64 `json:"duration_ms"`
}

// Package store persists the run ledger and the appearance archive
// behind a driver-neutral interface.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines persistence for scrape runs and archived appearances.
type Store interface {
	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunSource(ctx context.Context, runID, sourceURL string) error
	CompleteRun(ctx context.Context, runID, dateRange string, stats *model.RunStats) error
	FailRun(ctx context.Context, runID, cause string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Appearance archive
	ArchiveAppearances(ctx context.Context, runID string, apps []model.TruckAppearance) (int, error)
	ListAppearancesByDate(ctx context.Context, date model.Date) ([]model.TruckAppearance, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the slice of pgxpool.Pool the Postgres store uses. pgxmock
// implements it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

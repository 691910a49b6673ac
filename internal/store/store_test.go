package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func sampleAppearances(t *testing.T) []model.TruckAppearance {
	t.Helper()
	lat, lon := 34.2352, -77.9490
	return []model.TruckAppearance{
		{
			TruckName: "A Craving Station", Description: "Filipino street food",
			Link: "https://example.com/acs", Date: mustDate(t, "2026-02-20"),
			LocationName: "Pour Taproom", Address: "201 N Front St",
			Latitude: &lat, Longitude: &lon,
			StartTime: "5:00 PM", EndTime: "8:00 PM",
		},
		{
			TruckName: "Momma Rocks", Date: mustDate(t, "2026-02-20"),
			LocationName: "Mad Mole Brewing patio takeover",
		},
		{
			TruckName: "A Craving Station", Date: mustDate(t, "2026-02-21"),
			LocationName: "Waterline Brewing Co.",
			StartTime:    "12:00 PM", EndTime: "4:00 PM",
		},
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusFetching))
	require.NoError(t, s.UpdateRunSource(ctx, run.ID, "https://portcitydaily.com/2026/02/21/food-truck-tracker"))

	stats := &model.RunStats{Locations: 12, Trucks: 8, Appearances: 31, Geocoded: 3, CacheHits: 9, DurationMs: 4200}
	require.NoError(t, s.CompleteRun(ctx, run.ID, "Feb. 16 – 22", stats))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "https://portcitydaily.com/2026/02/21/food-truck-tracker", got.SourceURL)
	assert.Equal(t, "Feb. 16 – 22", got.DateRange)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 31, got.Stats.Appearances)
	assert.Equal(t, int64(4200), got.Stats.DurationMs)
	assert.Empty(t, got.Error)
}

func TestStore_FailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, run.ID, "fetcher: all retries exhausted"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "fetcher: all retries exhausted", got.Error)
	assert.Nil(t, got.Stats)
}

func TestStore_GetRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestStore_UpdateMissingRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	assert.True(t, eris.Is(s.UpdateRunStatus(ctx, "ghost", model.RunStatusFetching), ErrNotFound))
	assert.True(t, eris.Is(s.UpdateRunSource(ctx, "ghost", "https://x"), ErrNotFound))
	assert.True(t, eris.Is(s.CompleteRun(ctx, "ghost", "", nil), ErrNotFound))
	assert.True(t, eris.Is(s.FailRun(ctx, "ghost", "boom"), ErrNotFound))
}

func TestStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, first.ID, "boom"))
	time.Sleep(5 * time.Millisecond) // distinct created_at ordering

	second, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, second.ID, "Feb. 16 – 22", &model.RunStats{Trucks: 2}))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "newest first")

	failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, first.ID, failed[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, offset, 1)
	assert.Equal(t, first.ID, offset[0].ID)
}

func TestStore_ArchiveAndListAppearances(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)

	n, err := s.ArchiveAppearances(ctx, run.ID, sampleAppearances(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	apps, err := s.ListAppearancesByDate(ctx, mustDate(t, "2026-02-20"))
	require.NoError(t, err)
	require.Len(t, apps, 2)

	// Ordered by truck name.
	assert.Equal(t, "A Craving Station", apps[0].TruckName)
	assert.Equal(t, "Pour Taproom", apps[0].LocationName)
	assert.Equal(t, "5:00 PM", apps[0].StartTime)
	require.NotNil(t, apps[0].Latitude)
	assert.Equal(t, 34.2352, *apps[0].Latitude)

	assert.Equal(t, "Momma Rocks", apps[1].TruckName)
	assert.Nil(t, apps[1].Latitude, "null coordinates survive the round trip")
	assert.Empty(t, apps[1].StartTime)
}

func TestStore_ListAppearances_NewestRunWins(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	date := mustDate(t, "2026-02-20")

	older, err := s.CreateRun(ctx)
	require.NoError(t, err)
	_, err = s.ArchiveAppearances(ctx, older.ID, []model.TruckAppearance{
		{TruckName: "Stale Truck", Date: date, LocationName: "Old Venue"},
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	newer, err := s.CreateRun(ctx)
	require.NoError(t, err)
	_, err = s.ArchiveAppearances(ctx, newer.ID, []model.TruckAppearance{
		{TruckName: "Fresh Truck", Date: date, LocationName: "New Venue"},
	})
	require.NoError(t, err)

	apps, err := s.ListAppearancesByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Fresh Truck", apps[0].TruckName)
}

func TestStore_ListAppearances_EmptyDate(t *testing.T) {
	s := newTestSQLite(t)

	apps, err := s.ListAppearancesByDate(context.Background(), mustDate(t, "2030-01-01"))
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestStore_ArchiveNothingIsNoop(t *testing.T) {
	s := newTestSQLite(t)

	n, err := s.ArchiveAppearances(context.Background(), "any-run", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

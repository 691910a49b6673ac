package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
	"github.com/jrklein8/ILMFoodNBrew/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	runs    []model.Run
	listErr error
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	runs := m.runs
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

// Unused store methods — satisfy the interface.
func (m *mockStore) CreateRun(context.Context) (*model.Run, error)                      { return nil, nil }
func (m *mockStore) UpdateRunStatus(context.Context, string, model.RunStatus) error     { return nil }
func (m *mockStore) UpdateRunSource(context.Context, string, string) error              { return nil }
func (m *mockStore) CompleteRun(context.Context, string, string, *model.RunStats) error { return nil }
func (m *mockStore) FailRun(context.Context, string, string) error                      { return nil }
func (m *mockStore) GetRun(context.Context, string) (*model.Run, error)                 { return nil, nil }
func (m *mockStore) ArchiveAppearances(context.Context, string, []model.TruckAppearance) (int, error) {
	return 0, nil
}
func (m *mockStore) ListAppearancesByDate(context.Context, model.Date) ([]model.TruckAppearance, error) {
	return nil, nil
}
func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func missingDataset(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "foodtrucks.json")
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(&mockStore{}, missingDataset(t))

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.RunsTotal)
	assert.Equal(t, 0, snap.RunsFailed)
	assert.Equal(t, 0.0, snap.FailRate)
	assert.False(t, snap.DatasetPresent)
	assert.True(t, snap.LastCompleteAt.IsZero())
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_RunMetrics(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{ID: "1", Status: model.RunStatusComplete, CreatedAt: now.Add(-1 * time.Hour),
				Stats: &model.RunStats{Geocoded: 5, CacheHits: 3, Missed: 2}},
			{ID: "2", Status: model.RunStatusComplete, CreatedAt: now.Add(-3 * time.Hour),
				Stats: &model.RunStats{Geocoded: 8}},
			{ID: "3", Status: model.RunStatusFailed, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "4", Status: model.RunStatusGeocoding, CreatedAt: now.Add(-30 * time.Minute)},
			// Outside lookback window — should be filtered out.
			{ID: "5", Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour)},
		},
	}

	c := NewCollector(st, missingDataset(t))
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsActive)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 0.001) // 1 failed / 3 finished
	assert.Equal(t, 13, snap.Geocoded)
	assert.Equal(t, 3, snap.CacheHits)
	assert.Equal(t, 2, snap.Missed)
	assert.InDelta(t, 2.0/18.0, snap.MissRate, 0.001)
	assert.Equal(t, now.Add(-1*time.Hour), snap.LastCompleteAt)
}

func TestCollector_LastCompleteOutsideWindow(t *testing.T) {
	// A stale-but-complete run still anchors LastCompleteAt even when the
	// lookback window no longer counts it.
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{ID: "1", Status: model.RunStatusFailed, CreatedAt: now.Add(-1 * time.Hour)},
			{ID: "2", Status: model.RunStatusComplete, CreatedAt: now.Add(-48 * time.Hour)},
		},
	}

	c := NewCollector(st, missingDataset(t))
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, now.Add(-48*time.Hour), snap.LastCompleteAt)
}

func TestCollector_DatasetPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foodtrucks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"appearances":[]}`), 0o644))

	c := NewCollector(&mockStore{}, path)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.True(t, snap.DatasetPresent)
	assert.WithinDuration(t, time.Now().UTC(), snap.DatasetModifiedAt, time.Minute)
}

func TestCollector_DefaultLookback(t *testing.T) {
	c := NewCollector(&mockStore{}, missingDataset(t))

	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_ListRunsError(t *testing.T) {
	st := &mockStore{listErr: eris.New("connection refused")}
	c := NewCollector(st, missingDataset(t))

	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
}

func TestCollector_FailureRateZeroFinished(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{ID: "1", Status: model.RunStatusQueued, CreatedAt: now.Add(-1 * time.Hour)},
			{ID: "2", Status: model.RunStatusFetching, CreatedAt: now.Add(-2 * time.Hour)},
		},
	}

	c := NewCollector(st, missingDataset(t))
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	// No finished runs, so failure rate should be 0.
	assert.Equal(t, 0.0, snap.FailRate)
	assert.Equal(t, 2, snap.RunsActive)
}

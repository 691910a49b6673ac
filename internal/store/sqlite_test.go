package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrklein8/ILMFoodNBrew/internal/model"
)

// TestNewSQLite_InvalidDSN verifies that NewSQLite returns an error for
// a path inside a nonexistent directory.
func TestNewSQLite_InvalidDSN(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "does-not-exist", "nested", "test.db")
	_, err := NewSQLite(dbPath)
	require.Error(t, err)
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
}

func TestSQLite_DateStoredAsISOText(t *testing.T) {
	s := newTestSQLite(t).(*SQLiteStore)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	_, err = s.ArchiveAppearances(ctx, run.ID, []model.TruckAppearance{
		{TruckName: "X", Date: mustDate(t, "2026-02-20"), LocationName: "Y"},
	})
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT date FROM appearances LIMIT 1`).Scan(&raw))
	assert.Equal(t, "2026-02-20", raw)
}

func TestSQLite_StatsSurviveReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, run.ID, "Feb. 16 – 22", &model.RunStats{Missed: 2, CacheHits: 7}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() }) //nolint:errcheck

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 2, got.Stats.Missed)
	assert.Equal(t, 7, got.Stats.CacheHits)
}

package sqlite

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/aqguard/pkg/table"
)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore_InvalidPath(t *testing.T) {
	_, err := NewStore("/nonexistent/path/that/cannot/exist/test.db", zerolog.Nop())
	assert.Error(t, err)
}

func TestSaveLoadTable(t *testing.T) {
	store := setupTestDB(t)

	stamp := time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC)
	want, err := table.New(
		table.NewString("Date", []string{"10/03/2004", "11/03/2004", ""}),
		table.NewFloat("CO(GT)", []float64{2.6, 2.0, math.NaN()}),
		table.NewTime("Datetime", []time.Time{stamp, stamp.Add(time.Hour), {}}),
		table.NewFloat("anomaly", []float64{1, -1, 1}),
	)
	require.NoError(t, err)

	require.NoError(t, store.SaveTable("readings", want))

	got, err := store.LoadTable("readings")
	require.NoError(t, err)
	assert.Equal(t, want.Names(), got.Names())
	assert.Equal(t, 3, got.NumRows())

	date, _ := got.Column("Date")
	assert.Equal(t, []string{"10/03/2004", "11/03/2004", ""}, date.Strings)

	co, _ := got.Column("CO(GT)")
	assert.Equal(t, 2.6, co.Floats[0])
	assert.True(t, math.IsNaN(co.Floats[2]))

	dt, _ := got.Column("Datetime")
	require.Equal(t, table.Time, dt.Kind)
	assert.True(t, stamp.Equal(dt.Times[0]))
	assert.True(t, dt.Times[2].IsZero())

	// Saving again replaces the table.
	smaller := want.Select([]int{0})
	require.NoError(t, store.Writer("readings").Write(smaller))
	got, err = store.LoadTable("readings")
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumRows())
}

func TestSaveTableNoColumns(t *testing.T) {
	store := setupTestDB(t)
	empty, err := table.New()
	require.NoError(t, err)
	assert.Error(t, store.SaveTable("x", empty))
}

func TestLoadMissingTable(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.LoadTable("nope")
	assert.Error(t, err)
}

func TestRuns(t *testing.T) {
	store := setupTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.RecordRun(Run{
			ID:            id,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			Input:         "AirQualityUCI.csv",
			Rows:          9357,
			Anomalies:     468,
			Contamination: 0.05,
			Seed:          42,
		}))
	}

	runs, err := store.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, 468, runs[0].Anomalies)
	assert.Equal(t, int64(42), runs[0].Seed)

	assert.Error(t, store.RecordRun(Run{ID: "a", CreatedAt: base}), "duplicate id")
}

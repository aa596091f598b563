package table

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		NewString("Date", []string{"10/03/2004", "", "11/03/2004"}),
		NewFloat("CO(GT)", []float64{2.6, math.NaN(), 2.2}),
		NewTime("Datetime", []time.Time{time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC), {}, {}}),
	)
	require.NoError(t, err)
	return tbl
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cols    []*Column
		wantErr bool
	}{
		{name: "empty", cols: nil},
		{name: "equal lengths", cols: []*Column{NewFloat("a", []float64{1, 2}), NewString("b", []string{"x", "y"})}},
		{name: "ragged", cols: []*Column{NewFloat("a", []float64{1, 2}), NewFloat("b", []float64{1})}, wantErr: true},
		{name: "nil column", cols: []*Column{nil}, wantErr: true},
		{name: "duplicate name", cols: []*Column{NewFloat("CO", []float64{1}), NewFloat("CO", []float64{99})}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cols...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMissing(t *testing.T) {
	tbl := sample(t)

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, 0, tbl.MissingInRow(0))
	assert.Equal(t, 3, tbl.MissingInRow(1))
	assert.Equal(t, 1, tbl.MissingInRow(2))

	co, ok := tbl.Column("CO(GT)")
	require.True(t, ok)
	assert.Equal(t, 1, co.MissingCount())
	assert.False(t, co.AllMissing())
}

func TestSetDropRename(t *testing.T) {
	tbl := sample(t)

	require.NoError(t, tbl.Set(NewFloat("CO(GT)", []float64{1, 1, 1})))
	co, _ := tbl.Column("CO(GT)")
	assert.Equal(t, []float64{1, 1, 1}, co.Floats)
	assert.Equal(t, 3, tbl.NumCols())

	assert.Error(t, tbl.Set(NewFloat("short", []float64{1})))

	tbl.Drop("Date", "does-not-exist")
	assert.Equal(t, []string{"CO(GT)", "Datetime"}, tbl.Names())

	require.NoError(t, tbl.Rename("CO(GT)", "CO"))
	assert.True(t, tbl.Has("CO"))
	assert.Error(t, tbl.Rename("missing", "x"))
	assert.Error(t, tbl.Rename("CO", "Datetime"))
}

func TestSelectAndClone(t *testing.T) {
	tbl := sample(t)

	sub := tbl.Select([]int{2, 0})
	assert.Equal(t, 2, sub.NumRows())
	date, _ := sub.Column("Date")
	assert.Equal(t, []string{"11/03/2004", "10/03/2004"}, date.Strings)

	cp := tbl.Clone()
	cpCO, _ := cp.Column("CO(GT)")
	cpCO.Floats[0] = 99
	co, _ := tbl.Column("CO(GT)")
	assert.Equal(t, 2.6, co.Floats[0])

	assert.Len(t, tbl.FloatColumns(), 1)
}

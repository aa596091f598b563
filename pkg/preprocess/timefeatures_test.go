package preprocess

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/aqguard/pkg/table"
)

func TestParseDayFirst(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		clock  string
		want   time.Time
		wantOK bool
	}{
		{"dotted time", "10/03/2004", "18.00.00", time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC), true},
		{"colon time", "10/03/2004", "18:00:00", time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC), true},
		{"day first", "01/02/2005", "06:30:00", time.Date(2005, 2, 1, 6, 30, 0, 0, time.UTC), true},
		{"no seconds", "4/4/2005", "14.00", time.Date(2005, 4, 4, 14, 0, 0, 0, time.UTC), true},
		{"dashes", "10-03-2004", "00:00:00", time.Date(2004, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"iso", "2004-03-10", "18:00:00", time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC), true},
		{"empty date", "", "18:00:00", time.Time{}, false},
		{"garbage", "not a date", "18:00:00", time.Time{}, false},
		{"bad month", "10/13/2004", "18:00:00", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDayFirst(tt.date, tt.clock)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTimeFeatures(t *testing.T) {
	tbl, err := table.New(
		table.NewString(DateColumn, []string{"10/03/2004", "garbage", "31/12/2004"}),
		table.NewString(TimeColumn, []string{"18.00.00", "19.00.00", "23:00:00"}),
		table.NewFloat("CO(GT)", []float64{2.6, 2.0, 2.2}),
	)
	require.NoError(t, err)

	out := ExtractTimeFeatures(tbl)
	require.Equal(t, 3, out.NumRows(), "no row is dropped")

	dt, ok := out.Column(DatetimeColumn)
	require.True(t, ok)
	assert.Equal(t, table.Time, dt.Kind)
	assert.Equal(t, 18, dt.Times[0].Hour())
	assert.True(t, dt.Times[1].IsZero())

	hours, _ := out.Column(HourColumn)
	months, _ := out.Column(MonthColumn)
	assert.Equal(t, 18.0, hours.Floats[0])
	assert.Equal(t, 3.0, months.Floats[0])
	assert.True(t, math.IsNaN(hours.Floats[1]))
	assert.True(t, math.IsNaN(months.Floats[1]))
	assert.Equal(t, 23.0, hours.Floats[2])
	assert.Equal(t, 12.0, months.Floats[2])

	assert.False(t, tbl.Has(DatetimeColumn), "input must not be modified")
}

func TestExtractTimeFeaturesMissingColumns(t *testing.T) {
	tbl, err := table.New(table.NewString(DateColumn, []string{"10/03/2004"}))
	require.NoError(t, err)

	out := ExtractTimeFeatures(tbl)
	assert.Same(t, tbl, out)
}

func TestCleanThenExtractHour(t *testing.T) {
	raw := rawTable(t, 3)

	cleaned, err := NewCleaner().Clean(raw)
	require.NoError(t, err)
	out := ExtractTimeFeatures(cleaned)

	dt, _ := out.Column(DatetimeColumn)
	assert.Equal(t, 18, dt.Times[0].Hour())
	assert.Equal(t, 19, dt.Times[1].Hour())
}

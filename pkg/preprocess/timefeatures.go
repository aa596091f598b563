package preprocess

import (
	"math"
	"strings"
	"time"

	"github.com/hed1ad/aqguard/pkg/table"
)

// dayFirstLayouts are tried in order when parsing "Date Time".
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
}

// ParseDayFirst parses a date and a time string using the day-first convention.
// ok is false when no known layout matches.
func ParseDayFirst(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = NormalizeTime(strings.TrimSpace(clock))
	if date == "" || clock == "" {
		return time.Time{}, false
	}

	value := date + " " + clock
	for _, layout := range dayFirstLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ExtractTimeFeatures appends Datetime, Hour and Month derived from the Date
// and Time columns. When either column is absent the input is returned
// unchanged. Rows whose date or time cannot be parsed are kept with a null
// Datetime and NaN Hour and Month.
func ExtractTimeFeatures(t *table.Table) *table.Table {
	dates, ok := t.Column(DateColumn)
	if !ok || dates.Kind != table.String {
		return t
	}
	clocks, ok := t.Column(TimeColumn)
	if !ok || clocks.Kind != table.String {
		return t
	}

	out := t.Clone()
	n := out.NumRows()
	stamps := make([]time.Time, n)
	hours := make([]float64, n)
	months := make([]float64, n)

	for i := 0; i < n; i++ {
		ts, ok := ParseDayFirst(dates.Strings[i], clocks.Strings[i])
		if !ok {
			hours[i] = math.NaN()
			months[i] = math.NaN()
			continue
		}
		stamps[i] = ts
		hours[i] = float64(ts.Hour())
		months[i] = float64(ts.Month())
	}

	clockCol, _ := out.Column(TimeColumn)
	for i, s := range clockCol.Strings {
		clockCol.Strings[i] = NormalizeTime(s)
	}

	// Lengths match the cloned table, so Set cannot fail.
	_ = out.Set(table.NewTime(DatetimeColumn, stamps))
	_ = out.Set(table.NewFloat(HourColumn, hours))
	_ = out.Set(table.NewFloat(MonthColumn, months))

	return out
}

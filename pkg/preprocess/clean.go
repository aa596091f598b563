// Package preprocess turns raw air-quality records into a clean, timestamped table.
package preprocess

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hed1ad/aqguard/pkg/table"
)

// Column names with a fixed meaning in the source data.
const (
	DateColumn     = "Date"
	TimeColumn     = "Time"
	DatetimeColumn = "Datetime"
	HourColumn     = "Hour"
	MonthColumn    = "Month"
)

const (
	// Sentinel marks a missing reading in the source data.
	Sentinel = -200.0
	// MaxMissing is the number of missing cells a row may carry and survive.
	MaxMissing = 5
	// PlaceholderMarker appears in auto-generated column names.
	PlaceholderMarker = "Unnamed"
)

// DefaultDropColumns are excluded from analysis because they are mostly missing.
var DefaultDropColumns = []string{"NMHC(GT)"}

// Cleaner normalizes raw sensor tables.
type Cleaner struct {
	maxMissing  int
	sentinel    float64
	dropColumns []string
	logger      zerolog.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithMaxMissing sets how many missing cells a row may have.
func WithMaxMissing(n int) Option {
	return func(c *Cleaner) {
		c.maxMissing = n
	}
}

// WithSentinel sets the value that encodes a missing reading.
func WithSentinel(v float64) Option {
	return func(c *Cleaner) {
		c.sentinel = v
	}
}

// WithDropColumns replaces the list of known-bad columns.
func WithDropColumns(names ...string) Option {
	return func(c *Cleaner) {
		c.dropColumns = names
	}
}

// WithLogger sets the logger used for stage row counts.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = l
	}
}

// NewCleaner creates a Cleaner with the source data defaults.
func NewCleaner(opts ...Option) *Cleaner {
	c := &Cleaner{
		maxMissing:  MaxMissing,
		sentinel:    Sentinel,
		dropColumns: DefaultDropColumns,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean returns a cleaned copy of raw. The input is not modified.
//
// Float columns of the result never contain NaN: a float column that has no
// observed value left after row filtering is dropped rather than imputed.
func (c *Cleaner) Clean(raw *table.Table) (*table.Table, error) {
	t := raw.Clone()
	c.logger.Debug().Int("rows", t.NumRows()).Int("columns", t.NumCols()).Msg("clean: original")

	var placeholders []string
	for _, col := range t.Columns() {
		name := strings.TrimSpace(col.Name)
		if name == "" || strings.Contains(name, PlaceholderMarker) || col.AllMissing() {
			placeholders = append(placeholders, col.Name)
		}
	}
	t.Drop(placeholders...)
	c.logger.Debug().Strs("dropped", placeholders).Msg("clean: dropped unnamed/empty columns")

	for _, col := range t.Columns() {
		if trimmed := strings.TrimSpace(col.Name); trimmed != col.Name {
			if err := t.Rename(col.Name, trimmed); err != nil {
				return nil, err
			}
		}
	}

	replaced := 0
	for _, col := range t.FloatColumns() {
		for i, v := range col.Floats {
			if v == c.sentinel {
				col.Floats[i] = math.NaN()
				replaced++
			}
		}
	}
	c.logger.Debug().Int("cells", replaced).Msg("clean: replaced sentinel with missing")

	if col, ok := t.Column(TimeColumn); ok && col.Kind == table.String {
		for i, s := range col.Strings {
			col.Strings[i] = NormalizeTime(s)
		}
	}

	t.Drop(c.dropColumns...)

	keep := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		if t.MissingInRow(i) <= c.maxMissing {
			keep = append(keep, i)
		}
	}
	if len(keep) != t.NumRows() {
		t = t.Select(keep)
	}
	c.logger.Debug().Int("rows", t.NumRows()).Int("max_missing", c.maxMissing).Msg("clean: dropped sparse rows")

	var empty []string
	for _, col := range t.FloatColumns() {
		mean, ok := observedMean(col.Floats)
		if !ok {
			empty = append(empty, col.Name)
			continue
		}
		for i, v := range col.Floats {
			if math.IsNaN(v) {
				col.Floats[i] = mean
			}
		}
	}
	if len(empty) > 0 {
		c.logger.Warn().Strs("columns", empty).Msg("clean: no observed values left, dropping columns")
		t.Drop(empty...)
	}
	c.logger.Debug().Int("rows", t.NumRows()).Msg("clean: imputed remaining missing values")

	return t, nil
}

// NormalizeTime rewrites "18.00.00" style times to "18:00:00".
func NormalizeTime(s string) string {
	return strings.ReplaceAll(s, ".", ":")
}

// observedMean averages the non-NaN values; ok is false when there are none.
func observedMean(values []float64) (float64, bool) {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Package standard implements z-score standardization on top of gonum/stat.
package standard

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/aqguard/pkg/scalers"
	"github.com/hed1ad/aqguard/pkg/table"
)

var (
	ErrNoColumns = errors.New("no numeric columns to scale")
	ErrNoRows    = errors.New("no rows to scale")
)

// Scaler standardizes each numeric column to zero mean and unit variance
// using the population standard deviation.
type Scaler struct {
	exclude map[string]bool
}

var _ scalers.Scaler = (*Scaler)(nil)

// Option configures a Scaler.
type Option func(*Scaler)

// WithExclude leaves the named numeric columns out of the feature set.
func WithExclude(names ...string) Option {
	return func(s *Scaler) {
		for _, n := range names {
			s.exclude[n] = true
		}
	}
}

// New creates a standard scaler.
func New(opts ...Option) *Scaler {
	s := &Scaler{exclude: make(map[string]bool)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Columns returns the numeric columns that form the feature set, in order.
func (s *Scaler) Columns(t *table.Table) []*table.Column {
	var cols []*table.Column
	for _, c := range t.FloatColumns() {
		if !s.exclude[c.Name] {
			cols = append(cols, c)
		}
	}
	return cols
}

// FitTransform fits means and scales over all rows and standardizes t.
func (s *Scaler) FitTransform(t *table.Table) (*mat.Dense, scalers.Params, error) {
	cols := s.Columns(t)
	if len(cols) == 0 {
		return nil, scalers.Params{}, ErrNoColumns
	}
	if t.NumRows() == 0 {
		return nil, scalers.Params{}, ErrNoRows
	}

	p := scalers.Params{
		Columns: make([]string, len(cols)),
		Means:   make([]float64, len(cols)),
		Scales:  make([]float64, len(cols)),
	}
	for j, c := range cols {
		if err := checkFinite(c); err != nil {
			return nil, scalers.Params{}, err
		}
		mean, variance := stat.PopMeanVariance(c.Floats, nil)
		scale := math.Sqrt(variance)
		if scale == 0 || math.IsNaN(scale) {
			scale = 1
		}
		p.Columns[j] = c.Name
		p.Means[j] = mean
		p.Scales[j] = scale
	}

	m, err := s.Transform(t, p)
	if err != nil {
		return nil, scalers.Params{}, err
	}
	return m, p, nil
}

// Transform standardizes the columns named in p.
func (s *Scaler) Transform(t *table.Table, p scalers.Params) (*mat.Dense, error) {
	if len(p.Columns) == 0 {
		return nil, ErrNoColumns
	}
	if len(p.Means) != len(p.Columns) || len(p.Scales) != len(p.Columns) {
		return nil, errors.New("scaler params are inconsistent")
	}
	rows := t.NumRows()
	if rows == 0 {
		return nil, ErrNoRows
	}

	m := mat.NewDense(rows, len(p.Columns), nil)
	for j, name := range p.Columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("scale: column %q not found", name)
		}
		if c.Kind != table.Float {
			return nil, fmt.Errorf("scale: column %q is %s, want float", name, c.Kind)
		}
		if err := checkFinite(c); err != nil {
			return nil, err
		}
		for i, v := range c.Floats {
			m.Set(i, j, (v-p.Means[j])/p.Scales[j])
		}
	}
	return m, nil
}

func checkFinite(c *table.Column) error {
	for i, v := range c.Floats {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scale: column %q row %d is not a finite number", c.Name, i)
		}
	}
	return nil
}

// Package scalers defines the feature scaling contract used by the pipeline.
package scalers

import (
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/aqguard/pkg/table"
)

// Scaler fits per-column statistics and standardizes numeric columns.
type Scaler interface {
	// FitTransform fits statistics over every row of t and returns the
	// scaled feature matrix (rows x selected columns) with the fitted params.
	FitTransform(t *table.Table) (*mat.Dense, Params, error)

	// Transform scales t with previously fitted params. The columns named in
	// params must be present and numeric.
	Transform(t *table.Table, p Params) (*mat.Dense, error)
}

// Params are the statistics a Scaler fitted, in column order.
type Params struct {
	Columns []string
	Means   []float64
	// Scales are the divisors applied after centering. A zero-variance
	// column has scale 1, so it maps to 0.
	Scales []float64
}

// Rows converts a matrix into the row slices detectors consume. The rows
// share storage with m.
func Rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.RawRowView(i)
	}
	return out
}

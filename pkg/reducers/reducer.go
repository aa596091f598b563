// Package reducers defines the dimensionality reduction contract used for
// visualization.
package reducers

import "gonum.org/v1/gonum/mat"

// Reducer projects a feature matrix onto a lower-dimensional basis.
type Reducer interface {
	// Name identifies the algorithm and is part of projection cache keys.
	Name() string

	// Reduce returns the rows x nComponents projection and the fraction of
	// total variance explained by each kept component. Identical input must
	// produce identical output.
	Reduce(data *mat.Dense, nComponents int) (*mat.Dense, []float64, error)
}

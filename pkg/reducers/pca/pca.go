// Package pca implements principal component analysis on top of gonum/stat.
package pca

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/aqguard/pkg/reducers"
)

// PCA is a deterministic principal component reducer.
type PCA struct{}

var _ reducers.Reducer = PCA{}

// New returns a PCA reducer.
func New() PCA {
	return PCA{}
}

// Name implements reducers.Reducer.
func (PCA) Name() string {
	return "pca"
}

// Reduce centers data, finds the principal axes by SVD and projects each row
// onto the first nComponents of them. Each axis is oriented so that its
// largest-magnitude loading is positive, which makes signs reproducible.
func (PCA) Reduce(data *mat.Dense, nComponents int) (*mat.Dense, []float64, error) {
	if data == nil {
		return nil, nil, errors.New("pca: nil data")
	}
	rows, cols := data.Dims()
	if rows < 2 {
		return nil, nil, fmt.Errorf("pca: need at least 2 rows, got %d", rows)
	}
	if nComponents < 1 || nComponents > min(rows, cols) {
		return nil, nil, fmt.Errorf("pca: n_components=%d out of range [1, %d]", nComponents, min(rows, cols))
	}

	centered := mat.DenseCopyOf(data)
	for j := 0; j < cols; j++ {
		mean := stat.Mean(mat.Col(nil, j, data), nil)
		for i := 0; i < rows; i++ {
			centered.Set(i, j, centered.At(i, j)-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(centered, nil); !ok {
		return nil, nil, errors.New("pca: singular value decomposition failed")
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	basis := mat.DenseCopyOf(vecs.Slice(0, cols, 0, nComponents))
	for k := 0; k < nComponents; k++ {
		if dominantSign(mat.Col(nil, k, basis)) < 0 {
			for j := 0; j < cols; j++ {
				basis.Set(j, k, -basis.At(j, k))
			}
		}
	}

	var projected mat.Dense
	projected.Mul(centered, basis)

	var total float64
	for _, v := range vars {
		total += v
	}
	ratios := make([]float64, nComponents)
	if total > 0 {
		for k := range ratios {
			ratios[k] = vars[k] / total
		}
	}

	return &projected, ratios, nil
}

// dominantSign returns the sign of the entry with the largest magnitude.
func dominantSign(v []float64) float64 {
	best := 0.0
	for _, x := range v {
		if math.Abs(x) > math.Abs(best) {
			best = x
		}
	}
	if best < 0 {
		return -1
	}
	return 1
}

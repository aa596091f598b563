package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testProjection() *Projection {
	return &Projection{
		Coords:            mat.NewDense(3, 2, []float64{0.5, -1.25, 2, 0, -3.5, 1e-3}),
		Labels:            []int{1, -1, 1},
		ExplainedVariance: []float64{0.7, 0.2},
	}
}

func TestKey(t *testing.T) {
	features := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	cols := []string{"CO(GT)", "T"}
	labels := []int{1, -1}

	base := Key(features, cols, labels, "pca", 2)
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key(mat.DenseCopyOf(features), cols, labels, "pca", 2))

	changed := mat.DenseCopyOf(features)
	changed.Set(1, 1, 4.000000001)

	tests := []struct {
		name string
		key  string
	}{
		{"value", Key(changed, cols, labels, "pca", 2)},
		{"columns", Key(features, []string{"CO(GT)", "RH"}, labels, "pca", 2)},
		{"labels", Key(features, cols, []int{1, 1}, "pca", 2)},
		{"reducer", Key(features, cols, labels, "other", 2)},
		{"components", Key(features, cols, labels, "pca", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.key)
		})
	}
}

func TestPutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "pca_coordinates.csv")
	s := New(path, zerolog.Nop())

	_, ok := s.Get("k1")
	assert.False(t, ok, "absent file is a miss")

	want := testProjection()
	require.NoError(t, s.Put("k1", want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PC1,PC2,anomaly\n0.5,-1.25,1\n2,0,-1\n-3.5,0.001,1\n", string(raw))

	got, ok := s.Get("k1")
	require.True(t, ok)
	assert.True(t, mat.Equal(want.Coords, got.Coords))
	assert.Equal(t, want.Labels, got.Labels)
	assert.Equal(t, want.ExplainedVariance, got.ExplainedVariance)

	_, ok = s.Get("k2")
	assert.False(t, ok, "different key is stale")
}

func TestInvalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pca.csv")
	s := New(path, zerolog.Nop())

	require.NoError(t, s.Invalidate(), "invalidating nothing is fine")
	require.NoError(t, s.Put("k", testProjection()))
	require.NoError(t, s.Invalidate())

	_, ok := s.Get("k")
	assert.False(t, ok)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".meta")
}

func TestGetCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pca.csv")
	s := New(path, zerolog.Nop())
	require.NoError(t, s.Put("k", testProjection()))

	require.NoError(t, os.WriteFile(path, []byte("PC1,anomaly\n1,1\n"), 0o644))
	_, ok := s.Get("k")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path+".meta", []byte(":::not yaml"), 0o644))
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestProjectionTableMismatch(t *testing.T) {
	p := testProjection()
	p.Labels = p.Labels[:1]
	_, err := p.Table()
	assert.Error(t, err)
}

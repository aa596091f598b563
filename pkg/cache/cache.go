// Package cache persists 2D projections keyed by the data they were computed from.
//
// A cache entry is a CSV file with columns PC1..PCk and anomaly, plus a YAML
// sidecar (<path>.meta) holding the key. An entry is served only when the
// sidecar key equals the requested key; anything else is a miss and the
// caller recomputes. There is no file locking.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	aqcsv "github.com/hed1ad/aqguard/pkg/io/csv"
	"github.com/hed1ad/aqguard/pkg/table"
)

// LabelColumn is the label column written next to the coordinates.
const LabelColumn = "anomaly"

// Projection is a per-row low-dimensional embedding with its labels.
type Projection struct {
	// Coords is rows x components.
	Coords *mat.Dense
	// Labels are aligned with the rows of Coords.
	Labels []int
	// ExplainedVariance holds the variance ratio of each component.
	ExplainedVariance []float64
}

// ComponentName returns "PC1", "PC2", ... for a zero-based component index.
func ComponentName(k int) string {
	return fmt.Sprintf("PC%d", k+1)
}

// Table converts the projection to the persisted column layout.
func (p *Projection) Table() (*table.Table, error) {
	rows, comps := p.Coords.Dims()
	if len(p.Labels) != rows {
		return nil, fmt.Errorf("projection has %d rows but %d labels", rows, len(p.Labels))
	}

	cols := make([]*table.Column, 0, comps+1)
	for k := 0; k < comps; k++ {
		cols = append(cols, table.NewFloat(ComponentName(k), mat.Col(nil, k, p.Coords)))
	}
	labels := make([]float64, rows)
	for i, l := range p.Labels {
		labels[i] = float64(l)
	}
	cols = append(cols, table.NewFloat(LabelColumn, labels))
	return table.New(cols...)
}

// Key derives a cache key from the feature matrix, its column names, the
// labels and the reduction parameters. Values are hashed by bit pattern.
func Key(features *mat.Dense, columns []string, labels []int, reducer string, components int) string {
	h := sha256.New()
	var buf [8]byte

	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	writeString(reducer)
	writeUint(uint64(components))
	for _, c := range columns {
		writeString(c)
	}

	rows, cols := features.Dims()
	writeUint(uint64(rows))
	writeUint(uint64(cols))
	for i := 0; i < rows; i++ {
		for _, v := range features.RawRowView(i) {
			writeUint(math.Float64bits(v))
		}
	}
	for _, l := range labels {
		writeUint(uint64(int64(l)))
	}

	return hex.EncodeToString(h.Sum(nil))
}

type meta struct {
	Key               string    `yaml:"key"`
	Rows              int       `yaml:"rows"`
	Components        int       `yaml:"components"`
	ExplainedVariance []float64 `yaml:"explained_variance"`
	CreatedAt         time.Time `yaml:"created_at"`
}

// Store is a single-slot, file-backed projection cache.
type Store struct {
	path   string
	logger zerolog.Logger
}

// New returns a store writing to path (CSV) and path+".meta".
func New(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the projection CSV path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) metaPath() string {
	return s.path + ".meta"
}

// Get returns the cached projection for key. A missing, stale or unreadable
// entry is reported as a miss.
func (s *Store) Get(key string) (*Projection, bool) {
	raw, err := os.ReadFile(s.metaPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.metaPath()).Msg("cache: unreadable metadata")
		}
		return nil, false
	}

	var m meta
	if err := yaml.Unmarshal(raw, &m); err != nil {
		s.logger.Warn().Err(err).Str("path", s.metaPath()).Msg("cache: corrupt metadata")
		return nil, false
	}
	if m.Key != key {
		s.logger.Debug().Str("path", s.path).Msg("cache: stale entry")
		return nil, false
	}

	p, err := s.read(m)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("cache: unreadable projection")
		return nil, false
	}
	return p, true
}

func (s *Store) read(m meta) (*Projection, error) {
	r, err := aqcsv.NewReader(s.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t, err := r.Read()
	if err != nil {
		return nil, err
	}
	if m.Rows < 1 || m.Components < 1 {
		return nil, fmt.Errorf("metadata describes an empty projection")
	}
	if t.NumRows() != m.Rows {
		return nil, fmt.Errorf("projection has %d rows, metadata says %d", t.NumRows(), m.Rows)
	}

	coords := mat.NewDense(m.Rows, m.Components, nil)
	for k := 0; k < m.Components; k++ {
		c, ok := t.Column(ComponentName(k))
		if !ok || c.Kind != table.Float {
			return nil, fmt.Errorf("column %s missing", ComponentName(k))
		}
		coords.SetCol(k, c.Floats)
	}
	lc, ok := t.Column(LabelColumn)
	if !ok || lc.Kind != table.Float {
		return nil, fmt.Errorf("column %s missing", LabelColumn)
	}
	labels := make([]int, len(lc.Floats))
	for i, v := range lc.Floats {
		labels[i] = int(v)
	}

	return &Projection{
		Coords:            coords,
		Labels:            labels,
		ExplainedVariance: m.ExplainedVariance,
	}, nil
}

// Put stores p under key, replacing any previous entry. Files are written to
// temporaries and renamed into place.
func (s *Store) Put(key string, p *Projection) error {
	t, err := p.Table()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cache: create dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	w, err := aqcsv.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("cache: create projection: %w", err)
	}
	if err := w.Write(t); err != nil {
		w.Close()
		return fmt.Errorf("cache: write projection: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	rows, comps := p.Coords.Dims()
	raw, err := yaml.Marshal(meta{
		Key:               key,
		Rows:              rows,
		Components:        comps,
		ExplainedVariance: p.ExplainedVariance,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	metaTmp := s.metaPath() + ".tmp"
	if err := os.WriteFile(metaTmp, raw, 0o644); err != nil {
		return fmt.Errorf("cache: write metadata: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	if err := os.Rename(metaTmp, s.metaPath()); err != nil {
		return err
	}

	s.logger.Debug().Str("path", s.path).Int("rows", rows).Msg("cache: stored projection")
	return nil
}

// Invalidate removes the cached entry. Removing an absent entry is not an error.
func (s *Store) Invalidate() error {
	for _, p := range []string{s.metaPath(), s.path} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

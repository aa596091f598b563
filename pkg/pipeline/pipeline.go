// Package pipeline wires cleaning, time features, scaling and detection into
// one batch run, and projects its output for visualization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/aqguard/pkg/detectors"
	"github.com/hed1ad/aqguard/pkg/detectors/iforest"
	aqio "github.com/hed1ad/aqguard/pkg/io"
	aqcsv "github.com/hed1ad/aqguard/pkg/io/csv"
	"github.com/hed1ad/aqguard/pkg/io/sqlite"
	"github.com/hed1ad/aqguard/pkg/preprocess"
	"github.com/hed1ad/aqguard/pkg/scalers"
	"github.com/hed1ad/aqguard/pkg/scalers/standard"
	"github.com/hed1ad/aqguard/pkg/table"
)

// Columns appended to the augmented dataset.
const (
	AnomalyColumn = "anomaly"
	ScoreColumn   = "score"
)

// ReadingsTable is the SQLite table that receives the augmented dataset.
const ReadingsTable = "readings"

// Fatal input errors.
var (
	ErrEmptyDataset     = errors.New("dataset is empty")
	ErrNoFeatures       = errors.New("no numeric feature columns")
	ErrNonNumericColumn = errors.New("sensor column is not numeric")
)

// ReservedColumns are numeric columns that never enter the feature set.
var ReservedColumns = []string{
	preprocess.HourColumn,
	preprocess.MonthColumn,
	AnomalyColumn,
	ScoreColumn,
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID string
	// Table is the timestamped table with the anomaly (and score) columns.
	Table *table.Table
	// Features is the scaled feature matrix the detector was fitted on.
	Features *mat.Dense
	Params   scalers.Params
	Scores   []float64
	Labels   []int

	InputRows int
	Dropped   int
	Anomalies int
}

// Pipeline runs the batch anomaly detection.
type Pipeline struct {
	cleaner  *preprocess.Cleaner
	scaler   scalers.Scaler
	detector detectors.Detector
	config   detectors.Config

	includeScore bool
	readOpts     []aqcsv.Option
	outputPath   string
	store        *sqlite.Store

	logger zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithCleaner replaces the default cleaner.
func WithCleaner(c *preprocess.Cleaner) Option {
	return func(p *Pipeline) {
		p.cleaner = c
	}
}

// WithScaler replaces the default standard scaler.
func WithScaler(s scalers.Scaler) Option {
	return func(p *Pipeline) {
		p.scaler = s
	}
}

// WithDetectorConfig configures the isolation forest.
func WithDetectorConfig(cfg detectors.Config) Option {
	return func(p *Pipeline) {
		p.config = cfg
		p.detector = nil
	}
}

// WithDetector replaces the isolation forest entirely.
func WithDetector(d detectors.Detector) Option {
	return func(p *Pipeline) {
		p.detector = d
	}
}

// WithScore adds the decision score column to the augmented table.
func WithScore(on bool) Option {
	return func(p *Pipeline) {
		p.includeScore = on
	}
}

// WithReaderOptions passes options to the CSV reader used by RunFile.
func WithReaderOptions(opts ...aqcsv.Option) Option {
	return func(p *Pipeline) {
		p.readOpts = append(p.readOpts, opts...)
	}
}

// WithOutput sets where RunFile writes the augmented CSV.
func WithOutput(path string) Option {
	return func(p *Pipeline) {
		p.outputPath = path
	}
}

// WithStore makes RunFile save the augmented table and a run record.
func WithStore(s *sqlite.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		config: detectors.DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.cleaner == nil {
		p.cleaner = preprocess.NewCleaner(preprocess.WithLogger(p.logger))
	}
	if p.scaler == nil {
		p.scaler = standard.New(standard.WithExclude(ReservedColumns...))
	}
	if p.detector == nil {
		p.detector = iforest.New(iforest.WithConfig(p.config))
	}
	return p
}

// Run cleans t, derives time features, scales the feature columns and labels
// every surviving row. The input table is not modified.
func (p *Pipeline) Run(ctx context.Context, t *table.Table) (*Result, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	res := &Result{RunID: uuid.NewString(), InputRows: t.NumRows()}
	log := p.logger.With().Str("run_id", res.RunID).Logger()

	cleaned, err := p.cleaner.Clean(t)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if cleaned.NumRows() == 0 {
		return nil, fmt.Errorf("%w: no rows survived cleaning", ErrEmptyDataset)
	}
	res.Dropped = t.NumRows() - cleaned.NumRows()
	log.Info().Int("rows", cleaned.NumRows()).Int("dropped", res.Dropped).Msg("Cleaned dataset")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stamped := preprocess.ExtractTimeFeatures(cleaned)
	if !hasFeatures(stamped) {
		return nil, ErrNoFeatures
	}

	features, params, err := p.scaler.FitTransform(stamped)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	log.Debug().Strs("features", params.Columns).Msg("Scaled features")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores, labels, err := p.detector.FitDetect(scalers.Rows(features))
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	// stamped is either a fresh clone or the cleaner's private copy.
	out := stamped
	flags := make([]float64, len(labels))
	for i, l := range labels {
		flags[i] = float64(l)
	}
	if err := out.Set(table.NewFloat(AnomalyColumn, flags)); err != nil {
		return nil, err
	}
	if p.includeScore {
		if err := out.Set(table.NewFloat(ScoreColumn, append([]float64(nil), scores...))); err != nil {
			return nil, err
		}
	}

	res.Table = out
	res.Features = features
	res.Params = params
	res.Scores = scores
	res.Labels = labels
	res.Anomalies = detectors.CountAnomalies(labels)

	log.Info().
		Int("rows", out.NumRows()).
		Int("anomalies", res.Anomalies).
		Float64("contamination", p.config.Contamination).
		Msg("Detection complete")
	return res, nil
}

// RunFile reads a raw CSV, runs the pipeline and persists the augmented
// table to the configured CSV path and SQLite store.
func (p *Pipeline) RunFile(ctx context.Context, inputPath string) (*Result, error) {
	opts := append([]aqcsv.Option{
		aqcsv.WithStringColumns(preprocess.DateColumn, preprocess.TimeColumn),
	}, p.readOpts...)

	r, err := aqcsv.NewReader(inputPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer r.Close()

	raw, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	p.logger.Info().Str("input", inputPath).Int("rows", raw.NumRows()).Msg("Loaded dataset")

	res, err := p.Run(ctx, raw)
	if err != nil {
		return nil, err
	}

	var sinks []aqio.Writer
	if p.outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(p.outputPath), 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		w, err := aqcsv.NewWriter(p.outputPath)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		sinks = append(sinks, w)
	}
	if p.store != nil {
		sinks = append(sinks, p.store.Writer(ReadingsTable))
	}
	if err := persist(res.Table, sinks); err != nil {
		return nil, err
	}
	if p.outputPath != "" {
		p.logger.Info().Str("output", p.outputPath).Msg("Wrote augmented dataset")
	}

	if p.store != nil {
		err := p.store.RecordRun(sqlite.Run{
			ID:            res.RunID,
			CreatedAt:     time.Now(),
			Input:         inputPath,
			Rows:          res.Table.NumRows(),
			Anomalies:     res.Anomalies,
			Contamination: p.config.Contamination,
			Seed:          p.config.RandomSeed,
		})
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// persist writes t to every sink and closes them all.
func persist(t *table.Table, sinks []aqio.Writer) error {
	var firstErr error
	for _, w := range sinks {
		if firstErr == nil {
			if err := w.Write(t); err != nil {
				firstErr = fmt.Errorf("write augmented dataset: %w", err)
			}
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WriteCSV writes t to path, creating the parent directory.
func WriteCSV(path string, t *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	w, err := aqcsv.NewWriter(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return persist(t, []aqio.Writer{w})
}

// LoadAugmented reads an augmented dataset written by RunFile.
func LoadAugmented(path string) (*table.Table, error) {
	r, err := aqcsv.NewReader(path,
		aqcsv.WithTimeColumns(preprocess.DatetimeColumn),
		aqcsv.WithStringColumns(preprocess.DateColumn, preprocess.TimeColumn),
	)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Read()
}

func validate(t *table.Table) error {
	if t == nil || t.NumRows() == 0 || t.NumCols() == 0 {
		return ErrEmptyDataset
	}
	for _, c := range t.Columns() {
		if c.Kind != table.String {
			continue
		}
		name := strings.TrimSpace(c.Name)
		switch name {
		case preprocess.DateColumn, preprocess.TimeColumn:
			continue
		}
		// Placeholder and empty columns are dropped by the cleaner.
		if name == "" || strings.Contains(name, preprocess.PlaceholderMarker) || c.AllMissing() {
			continue
		}
		return fmt.Errorf("%w: %q", ErrNonNumericColumn, c.Name)
	}
	return nil
}

func hasFeatures(t *table.Table) bool {
	reserved := make(map[string]bool, len(ReservedColumns))
	for _, n := range ReservedColumns {
		reserved[n] = true
	}
	for _, c := range t.FloatColumns() {
		if !reserved[c.Name] {
			return true
		}
	}
	return false
}

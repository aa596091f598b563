package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/aqguard/pkg/cache"
	"github.com/hed1ad/aqguard/pkg/reducers"
	"github.com/hed1ad/aqguard/pkg/reducers/pca"
	"github.com/hed1ad/aqguard/pkg/scalers"
	"github.com/hed1ad/aqguard/pkg/scalers/standard"
	"github.com/hed1ad/aqguard/pkg/table"
)

// DefaultComponents is the projection dimensionality used for plotting.
const DefaultComponents = 2

// Projector computes 2D projections of the scaled features and keeps them
// in a cache keyed by the features, labels and reduction parameters.
type Projector struct {
	store      *cache.Store
	reducer    reducers.Reducer
	scaler     scalers.Scaler
	components int
	logger     zerolog.Logger
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithReducer replaces the default PCA reducer.
func WithReducer(r reducers.Reducer) ProjectorOption {
	return func(p *Projector) {
		p.reducer = r
	}
}

// WithProjectionScaler replaces the scaler used when projecting a table.
func WithProjectionScaler(s scalers.Scaler) ProjectorOption {
	return func(p *Projector) {
		p.scaler = s
	}
}

// WithComponents sets the number of retained components.
func WithComponents(k int) ProjectorOption {
	return func(p *Projector) {
		p.components = k
	}
}

// WithProjectorLogger sets the logger.
func WithProjectorLogger(l zerolog.Logger) ProjectorOption {
	return func(p *Projector) {
		p.logger = l
	}
}

// NewProjector creates a Projector backed by store.
func NewProjector(store *cache.Store, opts ...ProjectorOption) *Projector {
	p := &Projector{
		store:      store,
		reducer:    pca.New(),
		scaler:     standard.New(standard.WithExclude(ReservedColumns...)),
		components: DefaultComponents,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns the projection of an augmented table. The feature columns
// are rescaled with statistics fitted on the table itself, which reproduces
// the matrix the detector saw for the same cleaned data.
func (p *Projector) Project(ctx context.Context, augmented *table.Table) (*cache.Projection, error) {
	if augmented == nil || augmented.NumRows() == 0 {
		return nil, ErrEmptyDataset
	}
	labels, err := Labels(augmented)
	if err != nil {
		return nil, err
	}

	features, params, err := p.scaler.FitTransform(augmented)
	if err != nil {
		if errors.Is(err, standard.ErrNoColumns) {
			return nil, ErrNoFeatures
		}
		return nil, fmt.Errorf("scale: %w", err)
	}
	return p.project(ctx, features, params.Columns, labels)
}

// ProjectResult projects the features of a run in the same process, reusing
// its fitted scaling.
func (p *Projector) ProjectResult(ctx context.Context, res *Result) (*cache.Projection, error) {
	if res == nil || res.Features == nil {
		return nil, ErrEmptyDataset
	}
	return p.project(ctx, res.Features, res.Params.Columns, res.Labels)
}

func (p *Projector) project(ctx context.Context, features *mat.Dense, columns []string, labels []int) (*cache.Projection, error) {
	key := cache.Key(features, columns, labels, p.reducer.Name(), p.components)
	if proj, ok := p.store.Get(key); ok {
		p.logger.Debug().Str("path", p.store.Path()).Msg("Projection cache hit")
		return proj, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coords, ratios, err := p.reducer.Reduce(features, p.components)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	proj := &cache.Projection{
		Coords:            coords,
		Labels:            append([]int(nil), labels...),
		ExplainedVariance: ratios,
	}

	if err := p.store.Put(key, proj); err != nil {
		return nil, fmt.Errorf("store projection: %w", err)
	}
	p.logger.Info().
		Str("path", p.store.Path()).
		Floats64("explained_variance", ratios).
		Msg("Computed projection")
	return proj, nil
}

// Labels reads the anomaly column of an augmented table.
func Labels(t *table.Table) ([]int, error) {
	c, ok := t.Column(AnomalyColumn)
	if !ok || c.Kind != table.Float {
		return nil, fmt.Errorf("column %q not found", AnomalyColumn)
	}
	labels := make([]int, len(c.Floats))
	for i, v := range c.Floats {
		labels[i] = int(v)
	}
	return labels, nil
}

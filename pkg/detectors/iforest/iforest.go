// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hed1ad/aqguard/pkg/detectors"
)

// MaxContamination is the largest accepted contamination.
const MaxContamination = 0.5

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	threshold     float64
	maxDepth      int
	seed          int64

	// Trained model
	trees     []*iTree
	nFeatures int
	trained   bool

	// Statistics from training
	avgPathLength float64
}

var _ detectors.Model = (*IsolationForest)(nil)

// iTree represents a single isolation tree. Fields are exported for gob.
type iTree struct {
	Root *node
}

// node is a node in the isolation tree.
type node struct {
	// Split parameters (for internal nodes)
	Feature int
	Value   float64

	// Children
	Left  *node
	Right *node

	// Size is the number of samples that reached a leaf.
	Size int
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.seed = seed
	}
}

// WithConfig applies a shared detector configuration.
func WithConfig(cfg detectors.Config) Option {
	return func(f *IsolationForest) {
		f.contamination = cfg.Contamination
		f.seed = cfg.RandomSeed
		if cfg.Trees > 0 {
			f.nTrees = cfg.Trees
		}
		if cfg.SampleSize > 0 {
			f.sampleSize = cfg.SampleSize
		}
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	def := detectors.DefaultConfig()
	f := &IsolationForest{
		nTrees:        def.Trees,
		sampleSize:    def.SampleSize,
		contamination: def.Contamination,
		threshold:     0.5,
		seed:          def.RandomSeed,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fit trains the Isolation Forest on the provided data. The random source is
// reseeded on every call, so refitting the same data yields the same model.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if f.nTrees < 1 {
		return fmt.Errorf("tree count must be positive, got %d", f.nTrees)
	}
	if f.sampleSize < 1 {
		return fmt.Errorf("sample size must be positive, got %d", f.sampleSize)
	}
	if f.contamination < 0 || f.contamination > MaxContamination {
		return fmt.Errorf("contamination must be in [0, %v], got %v", MaxContamination, f.contamination)
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return errors.New("training data has no features")
	}
	for i, row := range data {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	// Adjust sample size if needed
	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(sampleSize))))

	rng := rand.New(rand.NewSource(f.seed))

	// Build trees
	f.trees = make([]*iTree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		f.trees[i] = &iTree{Root: f.buildNode(rng, sample, nFeatures, 0)}
	}

	// Calculate average path length for normalization
	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.nFeatures = nFeatures
	f.trained = true

	// Set threshold based on contamination
	if f.contamination > 0 {
		scores, err := f.predict(data)
		if err != nil {
			return err
		}
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}

	return nil
}

func (f *IsolationForest) buildNode(rng *rand.Rand, data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= f.maxDepth || n <= 1 {
		return &node{Size: n}
	}

	// Random feature among those that vary in this node
	var candidates []int
	for j := 0; j < nFeatures; j++ {
		if lo, hi := span(data, j); lo < hi {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &node{Size: n}
	}
	feature := candidates[rng.Intn(len(candidates))]
	minVal, maxVal := span(data, feature)

	// Random split value
	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		Feature: feature,
		Value:   splitValue,
		Left:    f.buildNode(rng, leftData, nFeatures, depth+1),
		Right:   f.buildNode(rng, rightData, nFeatures, depth+1),
	}
}

// span returns the min and max of one feature.
func span(data [][]float64, feature int) (float64, float64) {
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	return lo, hi
}

// FitDetect trains on data and labels the same rows. The returned scores are
// threshold minus anomaly score, so higher is more normal and a row is an
// anomaly exactly when its score is negative.
func (f *IsolationForest) FitDetect(data [][]float64) ([]float64, []int, error) {
	if err := f.Fit(data); err != nil {
		return nil, nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	raw, err := f.predict(data)
	if err != nil {
		return nil, nil, err
	}

	scores, labels := f.decide(raw)
	return scores, labels, nil
}

// Detect scores new samples against the fitted model and threshold.
func (f *IsolationForest) Detect(data [][]float64) ([]float64, []int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, nil, errors.New("model not trained")
	}

	raw, err := f.predict(data)
	if err != nil {
		return nil, nil, err
	}

	scores, labels := f.decide(raw)
	return scores, labels, nil
}

func (f *IsolationForest) decide(raw []float64) ([]float64, []int) {
	scores := make([]float64, len(raw))
	labels := make([]int, len(raw))
	for i, s := range raw {
		scores[i] = f.threshold - s
		if s > f.threshold {
			labels[i] = detectors.Anomaly
		} else {
			labels[i] = detectors.Normal
		}
	}
	return scores, labels
}

// Predict returns anomaly scores for the given samples.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, errors.New("model not trained")
	}

	return f.predict(data)
}

func (f *IsolationForest) predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		score, err := f.predictOne(sample)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		scores[i] = score
	}

	return scores, nil
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return 0, errors.New("model not trained")
	}

	return f.predictOne(sample)
}

func (f *IsolationForest) predictOne(sample []float64) (float64, error) {
	if len(sample) != f.nFeatures {
		return 0, fmt.Errorf("sample has %d features, model expects %d", len(sample), f.nFeatures)
	}

	// Average path length across all trees
	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(sample, tree.Root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// A single-sample forest has c(1) = 0; every point is equally isolated.
	if f.avgPathLength == 0 {
		return 0.5, nil
	}

	// Anomaly score: 2^(-avgPath / c(n))
	// Higher score = more anomalous
	return math.Pow(2, -avgPath/f.avgPathLength), nil
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	// gob drops pointers to zero values, so an empty leaf may decode as nil.
	if n == nil {
		return float64(currentDepth)
	}
	if n.Left == nil && n.Right == nil {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.Size))
	}

	if sample[n.Feature] < n.Value {
		return pathLength(sample, n.Left, currentDepth+1)
	}
	return pathLength(sample, n.Right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	// Approximation: H(n) ≈ ln(n) + 0.5772156649 (Euler-Mascheroni constant)
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// savedModel is the gob wire form of a trained forest.
type savedModel struct {
	NTrees        int
	SampleSize    int
	MaxDepth      int
	NFeatures     int
	Seed          int64
	Contamination float64
	Threshold     float64
	AvgPathLength float64
	Trees         []*iTree
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, errors.New("model not trained")
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(savedModel{
		NTrees:        f.nTrees,
		SampleSize:    f.sampleSize,
		MaxDepth:      f.maxDepth,
		NFeatures:     f.nFeatures,
		Seed:          f.seed,
		Contamination: f.contamination,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		Trees:         f.trees,
	})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var m savedModel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return err
	}
	if len(m.Trees) == 0 {
		return errors.New("saved model has no trees")
	}

	f.nTrees = m.NTrees
	f.sampleSize = m.SampleSize
	f.maxDepth = m.MaxDepth
	f.nFeatures = m.NFeatures
	f.seed = m.Seed
	f.contamination = m.Contamination
	f.threshold = m.Threshold
	f.avgPathLength = m.AvgPathLength
	f.trees = m.Trees
	f.trained = true

	return nil
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// SetThreshold updates the anomaly threshold.
func (f *IsolationForest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

// percentile calculates the p-th percentile of the data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}

// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

// Label values assigned to each row.
const (
	Normal  = 1
	Anomaly = -1
)

// Detector is the common interface for batch anomaly detection.
type Detector interface {
	// FitDetect trains on data and scores the same rows.
	// data is a 2D slice where each row is a sample and each column is a feature.
	// Scores are decision values: higher is more normal, negative values lie
	// beyond the contamination threshold. Labels are Normal or Anomaly.
	FitDetect(data [][]float64) (scores []float64, labels []int, err error)
}

// Model is a Detector whose fitted state can be reused and persisted.
type Model interface {
	Detector

	// Fit trains the detector on historical data.
	Fit(data [][]float64) error

	// Predict returns raw anomaly scores in [0, 1] where higher values
	// indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the raw anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64
	// Trees is the ensemble size.
	Trees int
	// SampleSize is the subsample drawn for each tree.
	SampleSize int
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.05,
		Trees:         100,
		SampleSize:    256,
		RandomSeed:    42,
	}
}

// CountAnomalies returns how many labels are Anomaly.
func CountAnomalies(labels []int) int {
	n := 0
	for _, l := range labels {
		if l == Anomaly {
			n++
		}
	}
	return n
}

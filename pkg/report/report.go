// Package report derives the chart data the dashboard consumes from an
// augmented dataset: anomaly counts by hour and month, and per-sensor series.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hed1ad/aqguard/pkg/detectors"
	"github.com/hed1ad/aqguard/pkg/preprocess"
	"github.com/hed1ad/aqguard/pkg/table"
)

// LabelColumn holds the detector label in augmented tables.
const LabelColumn = "anomaly"

// Sensors are the selectable sensor columns.
var Sensors = []string{"CO(GT)", "NOx(GT)", "NO2(GT)", "C6H6(GT)", "T", "RH", "AH"}

// Bucket is an anomaly count for one hour or month value.
type Bucket struct {
	Key   int
	Count int
}

// Point is one sample of a sensor series.
type Point struct {
	Time    time.Time
	Value   float64
	Anomaly bool
}

// CountByHour counts anomalous rows per Hour value.
func CountByHour(t *table.Table) ([]Bucket, error) {
	return countBy(t, preprocess.HourColumn)
}

// CountByMonth counts anomalous rows per Month value.
func CountByMonth(t *table.Table) ([]Bucket, error) {
	return countBy(t, preprocess.MonthColumn)
}

func countBy(t *table.Table, column string) ([]Bucket, error) {
	labels, err := labelColumn(t)
	if err != nil {
		return nil, err
	}
	keys, ok := t.Column(column)
	if !ok || keys.Kind != table.Float {
		return nil, fmt.Errorf("report: numeric column %q not found", column)
	}

	counts := make(map[int]int)
	for i, l := range labels.Floats {
		if int(l) != detectors.Anomaly || math.IsNaN(keys.Floats[i]) {
			continue
		}
		counts[int(keys.Floats[i])]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, Bucket{Key: k, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets, nil
}

// Series returns the time series of sensor. When highlight is false no point
// is flagged. Rows with a null Datetime are skipped.
func Series(t *table.Table, sensor string, highlight bool) ([]Point, error) {
	values, ok := t.Column(sensor)
	if !ok || values.Kind != table.Float {
		return nil, fmt.Errorf("report: sensor column %q not found", sensor)
	}
	stamps, ok := t.Column(preprocess.DatetimeColumn)
	if !ok || stamps.Kind != table.Time {
		return nil, fmt.Errorf("report: column %q not found", preprocess.DatetimeColumn)
	}
	var labels *table.Column
	if highlight {
		var err error
		if labels, err = labelColumn(t); err != nil {
			return nil, err
		}
	}

	points := make([]Point, 0, t.NumRows())
	for i, ts := range stamps.Times {
		if ts.IsZero() {
			continue
		}
		p := Point{Time: ts, Value: values.Floats[i]}
		if labels != nil {
			p.Anomaly = int(labels.Floats[i]) == detectors.Anomaly
		}
		points = append(points, p)
	}
	return points, nil
}

// AvailableSensors returns the known sensors present in t.
func AvailableSensors(t *table.Table) []string {
	var out []string
	for _, s := range Sensors {
		if c, ok := t.Column(s); ok && c.Kind == table.Float {
			out = append(out, s)
		}
	}
	return out
}

func labelColumn(t *table.Table) (*table.Column, error) {
	c, ok := t.Column(LabelColumn)
	if !ok || c.Kind != table.Float {
		return nil, fmt.Errorf("report: label column %q not found", LabelColumn)
	}
	return c, nil
}

package timingdb

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/ethpandaops/timingtree/pkg/frame"
)

// SeriesPoint is the value of one timer in one sample.
type SeriesPoint struct {
	Timestamp string  `json:"timestamp"`
	Revision  string  `json:"revision"`
	Value     float64 `json:"value"`
}

// ExtractSeries returns the values of column for the timer named timer in
// one table, in sample order. Samples without a value for the timer are
// skipped. A timer that never occurs yields an empty series.
func (d *Database) ExtractSeries(table int, timer, column string) ([]SeriesPoint, error) {
	_, data, err := d.Table(table)
	if err != nil {
		return nil, err
	}

	col := data.ColumnIndex(column)
	if col < 0 {
		return nil, fmt.Errorf("table %d has no column %q: %w", table, column, ErrUnknownColumn)
	}

	var points []SeriesPoint

	seen := make(map[string]struct{})

	for _, s := range d.Samples() {
		if _, ok := seen[s.FinishTime]; ok {
			continue
		}

		seen[s.FinishTime] = struct{}{}

		i := data.Lookup(frame.Key{Name: timer, Timestamp: s.FinishTime})
		if i < 0 {
			continue
		}

		v := data.Row(i)[col]
		if math.IsNaN(v) {
			continue
		}

		points = append(points, SeriesPoint{
			Timestamp: s.FinishTime,
			Revision:  s.Revision,
			Value:     v,
		})
	}

	return points, nil
}

// SeriesSummary holds summary statistics of a series.
type SeriesSummary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	StdDev float64 `json:"stddev"`
	Last   float64 `json:"last"`
}

// Summarize computes summary statistics over the values of points.
func Summarize(points []SeriesPoint) SeriesSummary {
	if len(points) == 0 {
		return SeriesSummary{}
	}

	xs := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Value
	}

	sample := stats.Sample{Xs: xs}
	lo, hi := sample.Bounds()

	summary := SeriesSummary{
		Count: len(xs),
		Min:   lo,
		Max:   hi,
		Mean:  sample.Mean(),
		P50:   sample.Quantile(0.50),
		P95:   sample.Quantile(0.95),
		Last:  xs[len(xs)-1],
	}

	if len(xs) > 1 {
		summary.StdDev = sample.StdDev()
	}

	return summary
}

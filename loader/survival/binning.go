package loadersurvival

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// TimeBreaks are the K+1 ordered boundaries of the K discrete survival intervals.
// Interval i is [b[i], b[i+1]); the first boundary is 0 and the last one lies above the
// largest reference duration.
type TimeBreaks []float64

// QuantileBreaks cuts the reference durations into numBins quantile intervals.
// Duplicate quantiles give empty intervals, which is accepted.
func QuantileBreaks(durations []float64, numBins int) (TimeBreaks, error) {
	if numBins < 1 {
		return nil, errors.Wrapf(ErrInvalidBinCount, "got %d", numBins)
	}
	if len(durations) == 0 {
		return nil, ErrNoDurations
	}

	sorted := make([]float64, len(durations))
	for i, d := range durations {
		if math.IsNaN(d) || d < 0 {
			return nil, errors.Wrapf(ErrNegativeDuration, "reference duration %d is %v", i, d)
		}
		sorted[i] = d
	}
	sort.Float64s(sorted)

	breaks := make(TimeBreaks, numBins+1)
	for i := range breaks {
		breaks[i] = quantile(sorted, float64(i)/float64(numBins))
	}
	breaks[0] = 0
	breaks[numBins]++
	return breaks, nil
}

// quantile interpolates linearly between the closest order statistics of sorted
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// NumBins is the number of intervals K
func (tb TimeBreaks) NumBins() int {
	return len(tb) - 1
}

// Bin returns the interval containing d. Durations at or above the last boundary belong to the
// last interval.
func (tb TimeBreaks) Bin(d float64) (int, error) {
	if len(tb) < 2 {
		return 0, errors.Wrapf(ErrInvalidBinCount, "%d time breaks", len(tb))
	}
	if math.IsNaN(d) || d < tb[0] {
		return 0, errors.Wrapf(ErrNegativeDuration, "got %v", d)
	}
	// first boundary strictly above d closes the interval
	i := sort.Search(len(tb), func(i int) bool { return tb[i] > d }) - 1
	if last := tb.NumBins() - 1; i > last {
		i = last
	}
	return i, nil
}

// Discretize bins every duration against the same boundaries
func (tb TimeBreaks) Discretize(durations []float64) ([]int, error) {
	labels := make([]int, len(durations))
	for i, d := range durations {
		l, err := tb.Bin(d)
		if err != nil {
			return nil, errors.Wrapf(err, "duration %d", i)
		}
		labels[i] = l
	}
	return labels, nil
}

// Package statistics holds the small numeric helpers used to reduce auditor scores.
package statistics

import (
	"errors"
	"math"
	"slices"
)

// ErrEmpty is returned by reductions that have no meaningful value for empty input.
var ErrEmpty = errors.New("no values to reduce")

// z95 is the two-sided 95% quantile of the standard normal distribution.
const z95 = 1.96

// Mean is the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sumSquaredDeviations returns the mean and the sum of squared deviations from it.
func sumSquaredDeviations(values []float64) (mean, ss float64) {
	mean = Mean(values)
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, ss
}

// Variance is the population variance, or 0 for no values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, ss := sumSquaredDeviations(values)
	return ss / float64(len(values))
}

// Interval is a closed range [Lower, Upper].
type Interval struct {
	Lower float64
	Upper float64
}

// Width is Upper - Lower.
func (i Interval) Width() float64 { return i.Upper - i.Lower }

// ConfidenceInterval95 is the normal-approximation 95% interval around the
// mean, using the sample standard deviation. With fewer than two values the
// interval collapses to the mean.
func ConfidenceInterval95(values []float64) Interval {
	n := len(values)
	mean, ss := sumSquaredDeviations(values)
	if n < 2 {
		return Interval{Lower: mean, Upper: mean}
	}
	margin := z95 * math.Sqrt(ss/float64(n-1)) / math.Sqrt(float64(n))
	return Interval{Lower: mean - margin, Upper: mean + margin}
}

// Spread is max - min, or 0 for no values.
func Spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values) - slices.Min(values)
}

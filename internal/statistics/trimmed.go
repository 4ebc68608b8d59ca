package statistics

import (
	"math"
	"slices"
)

// Sample is a value with a non-negative weight.
type Sample struct {
	Value  float64
	Weight float64
}

// trimCount is how many samples to drop from each end. The epsilon keeps
// products like 5*0.2 from flooring to 0.
func trimCount(n int, trim float64) int {
	if trim <= 0 {
		return 0
	}
	return int(math.Floor(float64(n)*trim + 1e-9))
}

// TrimmedMean sorts values, drops floor(n*trim) from each end and averages the
// rest. When nothing would remain the plain mean is returned.
func TrimmedMean(values []float64, trim float64) (float64, error) {
	samples := make([]Sample, len(values))
	for i, v := range values {
		samples[i] = Sample{Value: v, Weight: 1}
	}
	return WeightedTrimmedMean(samples, trim)
}

// WeightedTrimmedMean trims by value like TrimmedMean, then takes the weighted
// mean of what is left. If the retained weights sum to zero the retained values
// are averaged unweighted.
func WeightedTrimmedMean(samples []Sample, trim float64) (float64, error) {
	n := len(samples)
	if n == 0 {
		return 0, ErrEmpty
	}

	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b Sample) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})

	k := trimCount(n, trim)
	if n-2*k >= 1 {
		sorted = sorted[k : n-k]
	}

	sum, weight := 0.0, 0.0
	for _, s := range sorted {
		w := math.Max(s.Weight, 0)
		sum += s.Value * w
		weight += w
	}
	if weight == 0 {
		values := make([]float64, len(sorted))
		for i, s := range sorted {
			values[i] = s.Value
		}
		return Mean(values), nil
	}
	return sum / weight, nil
}

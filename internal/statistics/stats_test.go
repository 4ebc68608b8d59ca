package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanVariance(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		mean     float64
		variance float64
	}{
		{name: "empty", values: nil, mean: 0, variance: 0},
		{name: "single", values: []float64{4}, mean: 4, variance: 0},
		{name: "known", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, mean: 5, variance: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.mean, Mean(tt.values), 1e-9)
			assert.InDelta(t, tt.variance, Variance(tt.values), 1e-9)
		})
	}
}

func TestConfidenceInterval95(t *testing.T) {
	single := ConfidenceInterval95([]float64{3.5})
	assert.Equal(t, Interval{Lower: 3.5, Upper: 3.5}, single)
	assert.Zero(t, single.Width())

	// sample sd of 3,4,5 is 1, so the margin is 1.96/sqrt(3)
	ci := ConfidenceInterval95([]float64{3, 4, 5})
	margin := 1.96 / math.Sqrt(3)
	assert.InDelta(t, 4-margin, ci.Lower, 1e-9)
	assert.InDelta(t, 4+margin, ci.Upper, 1e-9)
	assert.InDelta(t, 2*margin, ci.Width(), 1e-9)
}

func TestSpread(t *testing.T) {
	assert.Zero(t, Spread(nil))
	assert.InDelta(t, 2.5, Spread([]float64{4.5, 2, 3}), 1e-9)
}

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		trim   float64
		want   float64
	}{
		{name: "drops one from each end", values: []float64{1, 2, 3, 4, 5}, trim: 0.2, want: 3.0},
		{name: "nothing dropped for three values", values: []float64{4, 4, 4}, trim: 0.2, want: 4.0},
		{name: "unsorted input", values: []float64{5, 1, 4, 2, 3}, trim: 0.2, want: 3.0},
		{name: "zero trim is plain mean", values: []float64{1, 2, 6}, trim: 0, want: 3.0},
		{name: "over-trim falls back to plain mean", values: []float64{1, 5}, trim: 0.5, want: 3.0},
		{name: "outlier removed", values: []float64{1, 4, 4, 4, 4, 4, 4, 4, 4, 5}, trim: 0.1, want: 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrimmedMean(tt.values, tt.trim)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTrimmedMean_Empty(t *testing.T) {
	_, err := TrimmedMean(nil, 0.2)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestWeightedTrimmedMean(t *testing.T) {
	got, err := WeightedTrimmedMean([]Sample{
		{Value: 1, Weight: 1},
		{Value: 3, Weight: 3},
		{Value: 4, Weight: 1},
		{Value: 5, Weight: 1},
		{Value: 2, Weight: 1},
	}, 0.2)
	require.NoError(t, err)
	// 1 and 5 are trimmed; (2*1 + 3*3 + 4*1) / 5
	assert.InDelta(t, 3.0, got, 1e-9)

	got, err = WeightedTrimmedMean([]Sample{{Value: 2, Weight: 0}, {Value: 4, Weight: 0}}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got, 1e-9)
}

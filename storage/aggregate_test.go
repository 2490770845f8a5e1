package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metrigo/model"
)

func TestAggregateCount(t *testing.T) {
	var a Aggregate

	a.observe(model.Count, model.CountValue(3), 10)
	a.observe(model.Count, model.CountValue(4), 20)

	assert.Equal(t, uint64(7), a.Total)
	assert.False(t, a.Degraded)

	v, ok := a.Value(model.Count, model.ReduceAverage)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestAggregateCountSaturates(t *testing.T) {
	var a Aggregate

	a.observe(model.Count, model.CountValue(math.MaxUint64-1), 10)
	a.observe(model.Count, model.CountValue(5), 20)

	assert.Equal(t, uint64(math.MaxUint64), a.Total)
	assert.True(t, a.Degraded)

	// Saturation is sticky across merges.
	var b Aggregate

	b.observe(model.Count, model.CountValue(1), 30)
	b.Merge(model.Count, &a)
	assert.True(t, b.Degraded)
	assert.Equal(t, uint64(math.MaxUint64), b.Total)
}

func TestAggregateRatio(t *testing.T) {
	var a Aggregate

	a.observe(model.Ratio, model.RatioValue(1, 2), 10)
	a.observe(model.Ratio, model.RatioValue(3, 6), 20)

	// Components aggregate independently: 4/8, not avg(1/2, 1/2).
	assert.Equal(t, uint64(4), a.Num)
	assert.Equal(t, uint64(8), a.Den)

	v, ok := a.Value(model.Ratio, model.ReduceAverage)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestAggregateRatioZeroDenominator(t *testing.T) {
	var a Aggregate

	a.observe(model.Ratio, model.RatioValue(3, 0), 10)

	_, ok := a.Value(model.Ratio, model.ReduceAverage)
	assert.False(t, ok)
}

func TestAggregateGaugeReducers(t *testing.T) {
	var a Aggregate

	a.observe(model.Gauge, model.GaugeValue(2), 10)
	a.observe(model.Gauge, model.GaugeValue(8), 30)
	a.observe(model.Gauge, model.GaugeValue(5), 20) // out of order: not the last

	tests := []struct {
		reducer model.GaugeReducer
		want    float64
	}{
		{model.ReduceAverage, 5},
		{model.ReduceLast, 8},
		{model.ReduceMin, 2},
		{model.ReduceMax, 8},
		{model.ReduceSum, 15},
	}

	for _, tt := range tests {
		t.Run(tt.reducer.String(), func(t *testing.T) {
			v, ok := a.Value(model.Gauge, tt.reducer)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestAggregateGaugeMergeWeightsAverage(t *testing.T) {
	var a, b Aggregate

	a.observe(model.Gauge, model.GaugeValue(1), 10)
	a.observe(model.Gauge, model.GaugeValue(1), 11)
	a.observe(model.Gauge, model.GaugeValue(1), 12)

	b.observe(model.Gauge, model.GaugeValue(9), 20)

	a.Merge(model.Gauge, &b)

	// Weighted by sample count: (3*1 + 9) / 4, not (1 + 9) / 2.
	v, ok := a.Value(model.Gauge, model.ReduceAverage)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = a.Value(model.Gauge, model.ReduceLast)
	require.True(t, ok)
	assert.Equal(t, 9.0, v)
}

func TestAggregateEmptyGauge(t *testing.T) {
	var a Aggregate

	_, ok := a.Value(model.Gauge, model.ReduceAverage)
	assert.False(t, ok)

	// Merging into an empty aggregate copies, so zero Min does not stick.
	var b Aggregate

	b.observe(model.Gauge, model.GaugeValue(7), 10)
	a.Merge(model.Gauge, &b)

	v, ok := a.Value(model.Gauge, model.ReduceMin)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metrigo/model"
)

func TestRNGDeterminism(t *testing.T) {
	rng := NewRNG(4711)

	a := make([]uint64, 8)
	for i := range a {
		a[i] = rng.Uint64()
	}

	rng.Reset()

	for i := range a {
		assert.Equal(t, a[i], rng.Uint64())
	}

	assert.Equal(t, int64(4711), rng.Seed())
}

func TestGenTags(t *testing.T) {
	tags := GenTags("az", 3)
	require.Len(t, tags, 3)
	assert.Equal(t, model.T("az", "v0"), tags[0])
	assert.Equal(t, model.T("az", "v2"), tags[2])
}

func TestGenSamplesInRange(t *testing.T) {
	rng := NewRNG(1)
	start := time.Unix(100, 0)
	end := time.Unix(200, 0)

	for _, s := range GenGaugeSamples(rng, 100, start, end) {
		assert.False(t, s.Time.Before(start))
		assert.True(t, s.Time.Before(end))
		assert.Equal(t, model.Gauge, s.Value.Kind())
	}

	for _, s := range GenCountSamples(rng, 100, start, end, 5) {
		assert.False(t, s.Time.Before(start))
		assert.True(t, s.Time.Before(end))
		assert.GreaterOrEqual(t, s.Value.Count(), uint64(1))
		assert.LessOrEqual(t, s.Value.Count(), uint64(5))
	}
}

func TestBucketSums(t *testing.T) {
	samples := []Sample{
		{Time: time.Unix(1, 0), Value: model.CountValue(2)},
		{Time: time.Unix(9, 0), Value: model.CountValue(3)},
		{Time: time.Unix(10, 0), Value: model.CountValue(4)},
		{Time: time.Unix(-1, 0), Value: model.CountValue(1)},
	}

	got := BucketSums(samples, 10*time.Second)
	require.Len(t, got, 3)

	assert.Equal(t, uint64(5), got[0].Total)
	assert.Equal(t, uint64(4), got[(10 * time.Second).Nanoseconds()].Total)
	assert.Equal(t, uint64(1), got[(-10 * time.Second).Nanoseconds()].Total)
}

func TestBucketSumsGaugeAndRatio(t *testing.T) {
	samples := []Sample{
		{Time: time.Unix(0, 0), Value: model.GaugeValue(10)},
		{Time: time.Unix(5, 0), Value: model.GaugeValue(20)},
		{Time: time.Unix(7, 0), Value: model.RatioValue(1, 4)},
	}

	got := BucketSums(samples, 10*time.Second)
	require.Len(t, got, 1)

	b := got[0]
	assert.InDelta(t, 30.0, b.Sum, 1e-9)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, uint64(1), b.Num)
	assert.Equal(t, uint64(4), b.Den)
}

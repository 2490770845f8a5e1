package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/testutil"
)

// Feeds a random sample stream through write, sweep and query and
// checks every bucket against a naive reference aggregation.
func TestEngineRandomizedCountAgainstReference(t *testing.T) {
	e, mock := newTestEngine(t)
	rng := testutil.NewRNG(4711)

	samples := testutil.GenCountSamples(rng, 500, at(0), at(600), 9)
	for _, s := range samples {
		_, _, err := e.Write(t.Context(), host("a"), nil, model.Count, s.Time, s.Value)
		require.NoError(t, err)
	}

	mock.Set(at(700))

	_, err := e.Sweep(t.Context())
	require.NoError(t, err)

	for _, g := range []time.Duration{10 * time.Second, time.Minute} {
		want := testutil.BucketSums(samples, g)

		res, err := e.Query(t.Context(), QuerySpec{
			Primary:     host("a"),
			Range:       window(0, 600),
			Granularity: g,
		})
		require.NoError(t, err)
		require.Len(t, res.Series, 1)
		require.Len(t, res.Series[0].Points, len(want))

		for _, p := range res.Series[0].Points {
			ref, ok := want[p.Start.UnixNano()]
			require.True(t, ok)
			assert.InDelta(t, float64(ref.Total), p.Value, 1e-9)
		}
	}
}

func TestEngineRandomizedGaugeAgainstReference(t *testing.T) {
	e, mock := newTestEngine(t)
	rng := testutil.NewRNG(1)

	samples := testutil.GenGaugeSamples(rng, 300, at(0), at(300))
	for _, s := range samples {
		_, _, err := e.Write(t.Context(), host("a"), nil, model.Gauge, s.Time, s.Value)
		require.NoError(t, err)
	}

	mock.Set(at(400))

	_, err := e.Sweep(t.Context())
	require.NoError(t, err)

	// Rollup averages must stay sample-weighted, so the minute level has
	// to agree with a flat reference pass over the raw stream.
	want := testutil.BucketSums(samples, time.Minute)

	res, err := e.Query(t.Context(), QuerySpec{
		Primary:     host("a"),
		Range:       window(0, 300),
		Granularity: time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	require.Len(t, res.Series[0].Points, len(want))

	for _, p := range res.Series[0].Points {
		ref, ok := want[p.Start.UnixNano()]
		require.True(t, ok)
		assert.InDelta(t, ref.Sum/float64(ref.Count), p.Value, 1e-9)
	}
}

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metrigo"
	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/testutil"
)

// Drives the full lifecycle through the public API: ingest across
// several hours, repeated sweeps, reads at every granularity, late
// writes, retention and deletion.
func TestE2E_Lifecycle(t *testing.T) {
	ctx := context.Background()

	mock := clock.NewMock()
	mock.Set(time.Unix(0, 0))

	db, err := metrigo.New(
		metrigo.WithGranularities(10*time.Second, time.Minute, time.Hour),
		metrigo.WithRetention(time.Hour, 6*time.Hour, 48*time.Hour),
		metrigo.WithClock(mock),
		metrigo.WithCompression(metrigo.CompressionZstd),
	)
	require.NoError(t, err)
	defer db.Close()

	primary := []model.Tag{model.T("endpoint", "/api"), model.T("env", "prod")}
	rng := testutil.NewRNG(42)

	// Ingest three hours of traffic, sweeping once per simulated hour.
	samples := make([]testutil.Sample, 0, 3000)

	for hour := range int64(3) {
		base := time.Unix(hour*3600, 0)
		batch := testutil.GenCountSamples(rng, 1000, base, base.Add(time.Hour), 9)
		samples = append(samples, batch...)

		for _, s := range batch {
			_, _, err := db.Write(ctx, metrigo.Sample{
				Primary: primary,
				Time:    s.Time,
				Value:   s.Value,
			})
			require.NoError(t, err)
		}

		mock.Set(base.Add(time.Hour + time.Minute))

		_, err := db.Sweep(ctx)
		require.NoError(t, err)
	}

	// Minute and hour levels must agree with a naive reference pass.
	for _, g := range []time.Duration{time.Minute, time.Hour} {
		want := testutil.BucketSums(samples, g)

		res, err := db.Query(ctx, metrigo.QuerySpec{
			Primary:     primary,
			Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(3*3600, 0)),
			Granularity: g,
		})
		require.NoError(t, err)
		require.Len(t, res.Series, 1)
		require.Len(t, res.Series[0].Points, len(want))

		for _, p := range res.Series[0].Points {
			assert.Equal(t, float64(want[p.Start.UnixNano()].Total), p.Value)
		}
	}

	// A late write into a still-retained window triggers a rebuild on
	// the next sweep and shows up at coarser granularities.
	_, _, err = db.Write(ctx, metrigo.Sample{
		Primary: primary,
		Time:    time.Unix(3*3600-30, 0),
		Value:   model.CountValue(5),
	})
	require.NoError(t, err)

	sw, err := db.Sweep(ctx)
	require.NoError(t, err)
	assert.Positive(t, sw.BucketsRebuilt)

	wantLast := testutil.BucketSums(samples, time.Hour)[(2 * time.Hour).Nanoseconds()].Total + 5

	res, err := db.Query(ctx, metrigo.QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(2*3600, 0), time.Unix(3*3600, 0)),
		Granularity: time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	require.Len(t, res.Series[0].Points, 1)
	assert.Equal(t, float64(wantLast), res.Series[0].Points[0].Value)

	// An hour later the fine level is fully past retention.
	mock.Set(time.Unix(4*3600, 0))

	sw, err = db.Sweep(ctx)
	require.NoError(t, err)
	assert.Positive(t, sw.BucketsEvicted)

	res, err = db.Query(ctx, metrigo.QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(3600, 0)),
		Granularity: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Series)
	require.NotEmpty(t, res.Gaps)
	assert.Equal(t, time.Unix(0, 0).UTC(), res.Gaps[0].Start)
	assert.Equal(t, time.Unix(3600, 0).UTC(), res.Gaps[0].End)

	// A write into the evicted window is rejected.
	_, _, err = db.Write(ctx, metrigo.Sample{
		Primary: primary,
		Time:    time.Unix(30, 0),
		Value:   model.CountValue(1),
	})
	require.ErrorIs(t, err, metrigo.ErrBucketExpired)

	// The minute level still answers the evicted range.
	res, err = db.Query(ctx, metrigo.QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(3600, 0)),
		Granularity: time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.NotEmpty(t, res.Series[0].Points)

	// Delete removes the series at every granularity.
	deleted, err := db.DeleteSeries(ctx, primary)
	require.NoError(t, err)
	assert.True(t, deleted)

	res, err = db.Query(ctx, metrigo.QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(3*3600, 0)),
		Granularity: time.Hour,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Series)
}

func TestE2E_MultiSeriesBreakdown(t *testing.T) {
	ctx := context.Background()

	mock := clock.NewMock()
	mock.Set(time.Unix(0, 0))

	db, err := metrigo.New(
		metrigo.WithGranularities(10*time.Second, time.Minute),
		metrigo.WithRetention(time.Hour, 2*time.Hour),
		metrigo.WithClock(mock),
	)
	require.NoError(t, err)
	defer db.Close()

	for _, host := range []string{"a", "b", "c"} {
		for _, status := range []string{"2xx", "5xx"} {
			_, _, err := db.Write(ctx, metrigo.Sample{
				Primary:   []model.Tag{model.T("host", host), model.T("env", "prod")},
				Secondary: []model.Tag{model.T("status", status)},
				Time:      time.Unix(5, 0),
				Value:     model.CountValue(1),
			})
			require.NoError(t, err)
		}
	}

	mock.Set(time.Unix(60, 0))

	// Filter to errors only, broken down per status, across all hosts.
	res, err := db.Query(ctx, metrigo.QuerySpec{
		Primary:     []model.Tag{model.T("env", "prod")},
		Secondary:   []model.Tag{model.T("status", "5xx")},
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(10, 0)),
		Granularity: 10 * time.Second,
		Breakdown:   true,
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 3)

	for _, s := range res.Series {
		require.Len(t, s.Points, 1)
		assert.Equal(t, 1.0, s.Points[0].Value)

		require.Len(t, s.Points[0].Groups, 1)
		assert.Equal(t, []model.Tag{model.T("status", "5xx")}, s.Points[0].Groups[0].Tags)
	}
}

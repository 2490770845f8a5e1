package metrigo

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metrigo/model"
)

func newTestDB(t *testing.T, optFns ...Option) (*Metrigo, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Unix(0, 0))

	opts := append([]Option{
		WithGranularities(10*time.Second, time.Minute),
		WithRetention(time.Hour, 2*time.Hour),
		WithClock(mock),
	}, optFns...)

	db, err := New(opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func TestWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	db, mock := newTestDB(t)

	primary := []model.Tag{model.T("host", "a"), model.T("env", "prod")}

	id, created, err := db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(1, 0),
		Value:   model.GaugeValue(10),
	})
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := db.Write(ctx, Sample{
		Primary: []model.Tag{model.T("env", "prod"), model.T("host", "a")},
		Time:    time.Unix(5, 0),
		Value:   model.GaugeValue(20),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, id2)

	mock.Set(time.Unix(60, 0))

	res, err := db.Query(ctx, QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(10, 0)),
		Granularity: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	require.Len(t, res.Series[0].Points, 1)
	assert.InDelta(t, 15.0, res.Series[0].Points[0].Value, 1e-9)
	assert.Empty(t, res.Gaps)
}

func TestSweepAndStats(t *testing.T) {
	ctx := context.Background()
	db, mock := newTestDB(t)

	primary := []model.Tag{model.T("host", "a")}

	for i := range 6 {
		_, _, err := db.Write(ctx, Sample{
			Primary: primary,
			Time:    time.Unix(int64(i*10), 0),
			Value:   model.CountValue(1),
		})
		require.NoError(t, err)
	}

	mock.Set(time.Unix(120, 0))

	sw, err := db.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sw.SeriesSwept)
	assert.Positive(t, sw.BucketsFolded)

	res, err := db.Query(ctx, QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(60, 0)),
		Granularity: time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	require.Len(t, res.Series[0].Points, 1)
	assert.InDelta(t, 6.0, res.Series[0].Points[0].Value, 1e-9)

	stats := db.Stats()
	assert.Equal(t, 1, stats.Series)
	assert.Len(t, stats.Levels, 2)
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	primary := []model.Tag{model.T("host", "a")}

	_, _, err := db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(1, 0),
		Value:   model.GaugeValue(1),
	})
	require.NoError(t, err)

	_, _, err = db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(2, 0),
		Value:   model.CountValue(1),
	})
	require.ErrorIs(t, err, ErrMetricTypeMismatch)

	_, err = db.Query(ctx, QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(10, 0)),
		Granularity: 7 * time.Second,
	})
	require.ErrorIs(t, err, ErrUnknownGranularity)
}

func TestTagSpaceExhaustedTranslation(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t, WithSecondaryBitWidth(1))

	primary := []model.Tag{model.T("host", "a")}

	_, _, err := db.Write(ctx, Sample{
		Primary:   primary,
		Secondary: []model.Tag{model.T("az", "1")},
		Time:      time.Unix(1, 0),
		Value:     model.GaugeValue(1),
	})
	require.NoError(t, err)

	_, _, err = db.Write(ctx, Sample{
		Primary:   primary,
		Secondary: []model.Tag{model.T("az", "2")},
		Time:      time.Unix(2, 0),
		Value:     model.GaugeValue(1),
	})
	require.ErrorIs(t, err, ErrTagSpaceExhausted)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(WithGranularities(time.Minute, 90*time.Second))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithSecondaryBitWidth(65))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDeleteSeries(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	primary := []model.Tag{model.T("host", "a")}

	_, _, err := db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(1, 0),
		Value:   model.GaugeValue(1),
	})
	require.NoError(t, err)

	deleted, err := db.DeleteSeries(ctx, primary)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteSeries(ctx, primary)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMetricsCollector(t *testing.T) {
	ctx := context.Background()
	collector := NewBasicMetricsCollector()

	db, _ := newTestDB(t, WithMetricsCollector(collector))

	primary := []model.Tag{model.T("host", "a")}

	_, _, err := db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(1, 0),
		Value:   model.GaugeValue(1),
	})
	require.NoError(t, err)

	_, _, err = db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(2, 0),
		Value:   model.CountValue(1),
	})
	require.Error(t, err)

	_, err = db.Query(ctx, QuerySpec{
		Primary:     primary,
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(10, 0)),
		Granularity: 10 * time.Second,
	})
	require.NoError(t, err)

	_, err = db.Sweep(ctx)
	require.NoError(t, err)

	stats := collector.GetStats()
	assert.Equal(t, int64(2), stats.WriteCount)
	assert.Equal(t, int64(1), stats.WriteErrors)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(0), stats.QueryErrors)
	assert.Equal(t, int64(1), stats.SweepCount)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, _, err := db.Write(ctx, Sample{
		Primary: []model.Tag{model.T("host", "a")},
		Time:    time.Unix(1, 0),
		Value:   model.GaugeValue(1),
	})
	require.ErrorIs(t, err, ErrClosed)

	_, err = db.Query(ctx, QuerySpec{
		Primary:     []model.Tag{model.T("host", "a")},
		Range:       model.NewTimeRange(time.Unix(0, 0), time.Unix(10, 0)),
		Granularity: 10 * time.Second,
	})
	require.ErrorIs(t, err, ErrClosed)

	_, err = db.Sweep(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSweepRateOption(t *testing.T) {
	ctx := context.Background()
	db, mock := newTestDB(t, WithSweepRate(100))

	primary := []model.Tag{model.T("host", "a")}

	_, _, err := db.Write(ctx, Sample{
		Primary: primary,
		Time:    time.Unix(5, 0),
		Value:   model.CountValue(3),
	})
	require.NoError(t, err)

	mock.Set(time.Unix(120, 0))

	sw, err := db.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sw.SeriesSwept)
	assert.Positive(t, sw.BucketsFolded)
}

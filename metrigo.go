package metrigo

import (
	"context"
	"time"

	"github.com/hupe1980/metrigo/engine"
	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/series"
	"github.com/hupe1980/metrigo/storage"
)

// SeriesID identifies a series within the engine. IDs are dense,
// assigned in creation order, and never reused.
type SeriesID = series.ID

// QuerySpec describes a read request. See the engine package for field
// documentation.
type QuerySpec = engine.QuerySpec

// Result is the outcome of a query: one entry per matched series plus
// the sub-ranges the requested granularity cannot answer.
type Result = engine.Result

// SeriesResult holds the points of one series.
type SeriesResult = engine.SeriesResult

// Point is one aggregated bucket.
type Point = engine.Point

// Group is one secondary tag breakdown within a point.
type Group = engine.Group

// SweepStats summarizes one maintenance sweep.
type SweepStats = engine.SweepStats

// Stats is a snapshot of engine state.
type Stats = engine.Stats

// Compression codecs for sealed buckets.
const (
	CompressionNone = storage.CompressionNone
	CompressionZstd = storage.CompressionZstd
	CompressionLZ4  = storage.CompressionLZ4
)

// Sample is one observation to record.
type Sample struct {
	// Primary identifies the series. Order and duplicates do not matter;
	// tag sets are canonicalized.
	Primary []model.Tag

	// Secondary tags are attached to the sample, not the series. They
	// feed bitmask filters and breakdowns at query time.
	Secondary []model.Tag

	// Time is the observation timestamp.
	Time time.Time

	// Value carries the payload. Its kind pins the metric type of the
	// series on first write; later samples must match.
	Value model.Value
}

// Metrigo is an embedded time series engine for a single logical metric.
// All methods are safe for concurrent use.
type Metrigo struct {
	engine  *engine.Engine
	logger  *Logger
	metrics MetricsCollector
}

// New creates an engine with the given options.
func New(optFns ...Option) (*Metrigo, error) {
	opts := applyOptions(optFns...)

	opts.cfg.Logger = opts.logger.Logger

	eng, err := engine.New(opts.cfg)
	if err != nil {
		return nil, translateError(err)
	}

	return &Metrigo{
		engine:  eng,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
	}, nil
}

// Write records one sample. It returns the ID of the series the sample
// landed in and whether that series was created by this write.
func (m *Metrigo) Write(ctx context.Context, s Sample) (SeriesID, bool, error) {
	start := time.Now()

	id, created, err := m.engine.Write(ctx, s.Primary, s.Secondary, s.Value.Kind(), s.Time, s.Value)
	err = translateError(err)

	duration := time.Since(start)
	m.metrics.RecordWrite(duration, err)
	m.logger.LogWrite(ctx, id, created, duration, err)

	return id, created, err
}

// Query reads aggregated points at one granularity. Sub-ranges the
// granularity cannot answer are reported in Result.Gaps, not filled
// from other granularities.
func (m *Metrigo) Query(ctx context.Context, q QuerySpec) (*Result, error) {
	start := time.Now()

	res, err := m.engine.Query(ctx, q)
	err = translateError(err)

	duration := time.Since(start)
	m.metrics.RecordQuery(duration, err)

	seriesCount, gapCount := 0, 0
	if res != nil {
		seriesCount, gapCount = len(res.Series), len(res.Gaps)
	}

	m.logger.LogQuery(ctx, q.Granularity, seriesCount, gapCount, duration, err)

	return res, err
}

// DeleteSeries removes the series identified by the primary tag set,
// including all of its stored data. It reports whether a series existed.
func (m *Metrigo) DeleteSeries(ctx context.Context, primary []model.Tag) (bool, error) {
	start := time.Now()

	deleted, err := m.engine.DeleteSeries(ctx, primary)
	err = translateError(err)

	duration := time.Since(start)
	m.metrics.RecordDelete(duration, err)
	m.logger.LogDelete(ctx, deleted, duration, err)

	return deleted, err
}

// Sweep runs one maintenance pass synchronously: rollup of dirty
// series, sealing, and retention. Concurrent sweeps are serialized.
func (m *Metrigo) Sweep(ctx context.Context) (SweepStats, error) {
	start := time.Now()

	stats, err := m.engine.Sweep(ctx)
	err = translateError(err)

	duration := time.Since(start)
	m.metrics.RecordSweep(duration, err)
	m.logger.LogSweep(ctx, stats, duration, err)

	return stats, err
}

// Stats returns a snapshot of engine state.
func (m *Metrigo) Stats() Stats {
	return m.engine.Stats()
}

// Close stops the background sweeper and rejects further operations.
// It is safe to call multiple times.
func (m *Metrigo) Close() error {
	return translateError(m.engine.Close())
}

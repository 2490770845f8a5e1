package metrigo

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/metrigo/engine"
	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/storage"
)

type options struct {
	cfg              engine.Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures the engine.
type Option func(*options)

// WithGranularities sets the granularity chain, finest first. Each
// granularity must be a positive integer multiple of the previous one.
//
// Default: 10s, 1m, 1h.
func WithGranularities(granularities ...time.Duration) Option {
	return func(o *options) {
		o.cfg.Granularities = granularities
	}
}

// WithRetention sets the retention horizon per granularity, in the same
// order as WithGranularities. A retention must be at least its
// granularity, and coarser levels must retain at least as long as finer
// ones.
//
// Default: 24h, 7d, 90d.
func WithRetention(retention ...time.Duration) Option {
	return func(o *options) {
		o.cfg.Retention = retention
	}
}

// WithSecondaryBitWidth limits how many distinct secondary tag pairs the
// engine accepts, one bit per pair (1..64). Writes that would exceed the
// width fail with ErrTagSpaceExhausted.
//
// Default: 64.
func WithSecondaryBitWidth(width int) Option {
	return func(o *options) {
		o.cfg.SecondaryBitWidth = width
	}
}

// WithGaugeReducer sets the default reducer applied to gauge buckets at
// query time. Individual queries may override it.
//
// Default: model.ReduceAverage.
func WithGaugeReducer(r model.GaugeReducer) Option {
	return func(o *options) {
		o.cfg.GaugeReducer = r
	}
}

// WithDictionaryLimit caps the number of distinct tag strings the
// dictionary interns.
//
// Default: 1 << 20.
func WithDictionaryLimit(limit int) Option {
	return func(o *options) {
		o.cfg.DictionaryLimit = limit
	}
}

// WithCompression selects the codec used when sealed buckets are
// compacted: CompressionNone, CompressionZstd or CompressionLZ4.
//
// Default: CompressionNone.
func WithCompression(c storage.Compression) Option {
	return func(o *options) {
		o.cfg.Compression = c
	}
}

// WithClock injects the clock used for retention and rollup decisions.
// Primarily useful for tests with a mock clock.
//
// Default: clock.New().
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.cfg.Clock = c
	}
}

// WithSweepInterval enables the background maintenance goroutine with
// the given period. Zero disables it; Sweep can still be called
// manually.
//
// Default: disabled.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *options) {
		o.cfg.SweepInterval = interval
	}
}

// WithSweepConcurrency bounds how many series a sweep rolls up in
// parallel.
//
// Default: 2.
func WithSweepConcurrency(n int) Option {
	return func(o *options) {
		o.cfg.SweepConcurrency = n
	}
}

// WithSweepRate throttles sweeps to at most n series per second. Zero
// means unthrottled.
//
// Default: unthrottled.
func WithSweepRate(n int) Option {
	return func(o *options) {
		o.cfg.SweepSeriesPerSec = float64(n)
	}
}

// WithQueryConcurrency bounds how many series a query scans in parallel.
//
// Default: runtime.GOMAXPROCS(0).
func WithQueryConcurrency(n int) Option {
	return func(o *options) {
		o.cfg.QueryConcurrency = n
	}
}

// WithMetricsCollector sets a custom metrics collector.
//
// Default: NoopMetricsCollector.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = collector
	}
}

// WithLogger sets a custom logger.
//
// Default: NoopLogger.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel is a convenience option that sets a text logger writing
// to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns ...Option) options {
	opts := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}

	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	return opts
}

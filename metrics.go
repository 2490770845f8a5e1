package metrigo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting operational
// metrics about the engine itself. Implementations must be safe for
// concurrent use.
//
// Example Prometheus implementation:
//
//	type PrometheusCollector struct {
//	    writeDuration prometheus.Histogram
//	    writeErrors   prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordWrite(duration time.Duration, err error) {
//	    p.writeDuration.Observe(duration.Seconds())
//	    if err != nil {
//	        p.writeErrors.Inc()
//	    }
//	}
type MetricsCollector interface {
	// RecordWrite records a write operation with its duration and outcome.
	RecordWrite(duration time.Duration, err error)

	// RecordQuery records a query operation with its duration and outcome.
	RecordQuery(duration time.Duration, err error)

	// RecordSweep records a maintenance sweep with its duration and outcome.
	RecordSweep(duration time.Duration, err error)

	// RecordDelete records a series deletion with its duration and outcome.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWrite(_ time.Duration, _ error)  {}
func (NoopMetricsCollector) RecordQuery(_ time.Duration, _ error)  {}
func (NoopMetricsCollector) RecordSweep(_ time.Duration, _ error)  {}
func (NoopMetricsCollector) RecordDelete(_ time.Duration, _ error) {}

// BasicMetricsCollector collects counts and cumulative latencies using
// atomic counters. Useful for tests and simple deployments.
type BasicMetricsCollector struct {
	writeCount    atomic.Int64
	writeErrors   atomic.Int64
	writeDuration atomic.Int64

	queryCount    atomic.Int64
	queryErrors   atomic.Int64
	queryDuration atomic.Int64

	sweepCount    atomic.Int64
	sweepErrors   atomic.Int64
	sweepDuration atomic.Int64

	deleteCount    atomic.Int64
	deleteErrors   atomic.Int64
	deleteDuration atomic.Int64
}

// NewBasicMetricsCollector creates a new basic metrics collector.
func NewBasicMetricsCollector() *BasicMetricsCollector {
	return &BasicMetricsCollector{}
}

func (b *BasicMetricsCollector) RecordWrite(duration time.Duration, err error) {
	b.writeCount.Add(1)
	b.writeDuration.Add(int64(duration))

	if err != nil {
		b.writeErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordQuery(duration time.Duration, err error) {
	b.queryCount.Add(1)
	b.queryDuration.Add(int64(duration))

	if err != nil {
		b.queryErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSweep(duration time.Duration, err error) {
	b.sweepCount.Add(1)
	b.sweepDuration.Add(int64(duration))

	if err != nil {
		b.sweepErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.deleteCount.Add(1)
	b.deleteDuration.Add(int64(duration))

	if err != nil {
		b.deleteErrors.Add(1)
	}
}

// BasicMetricsStats is a snapshot of the collected metrics.
type BasicMetricsStats struct {
	WriteCount       int64
	WriteErrors      int64
	AvgWriteDuration time.Duration

	QueryCount       int64
	QueryErrors      int64
	AvgQueryDuration time.Duration

	SweepCount       int64
	SweepErrors      int64
	AvgSweepDuration time.Duration

	DeleteCount       int64
	DeleteErrors      int64
	AvgDeleteDuration time.Duration
}

// GetStats returns a snapshot of the current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WriteCount:       b.writeCount.Load(),
		WriteErrors:      b.writeErrors.Load(),
		AvgWriteDuration: avgDuration(b.writeDuration.Load(), b.writeCount.Load()),

		QueryCount:       b.queryCount.Load(),
		QueryErrors:      b.queryErrors.Load(),
		AvgQueryDuration: avgDuration(b.queryDuration.Load(), b.queryCount.Load()),

		SweepCount:       b.sweepCount.Load(),
		SweepErrors:      b.sweepErrors.Load(),
		AvgSweepDuration: avgDuration(b.sweepDuration.Load(), b.sweepCount.Load()),

		DeleteCount:       b.deleteCount.Load(),
		DeleteErrors:      b.deleteErrors.Load(),
		AvgDeleteDuration: avgDuration(b.deleteDuration.Load(), b.deleteCount.Load()),
	}
}

func avgDuration(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}

	return time.Duration(total / count)
}

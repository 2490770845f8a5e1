package model

import (
	"fmt"
	"time"
)

// Tag is a single key/value pair attached to a sample.
type Tag struct {
	Key   string
	Value string
}

// T is a shorthand constructor for a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// String returns the tag in "key:value" form.
func (t Tag) String() string {
	return t.Key + ":" + t.Value
}

// MetricType identifies the payload shape of a series.
// It is fixed at series creation and immutable thereafter.
type MetricType uint8

const (
	// Gauge is a point-in-time float value (e.g. temperature, queue depth).
	Gauge MetricType = iota + 1

	// Count is a non-negative accumulator summed within a bucket.
	Count

	// Ratio is a (numerator, denominator) pair whose components
	// aggregate independently. The read-time value is
	// sum(numerators)/sum(denominators), never an average of ratios.
	Ratio
)

// String returns a human-readable name for the metric type.
func (m MetricType) String() string {
	switch m {
	case Gauge:
		return "gauge"
	case Count:
		return "count"
	case Ratio:
		return "ratio"
	default:
		return fmt.Sprintf("metrictype(%d)", uint8(m))
	}
}

// Valid reports whether m is a known metric type.
func (m MetricType) Valid() bool {
	return m >= Gauge && m <= Ratio
}

// FilterMode selects the semantics of a secondary tag filter.
type FilterMode uint8

const (
	// MatchAll requires every filter tag to be present on the sample
	// (filter bits are a subset of the sample bits).
	MatchAll FilterMode = iota

	// MatchAny requires at least one filter tag to be present on the
	// sample (filter bits intersect the sample bits).
	MatchAny
)

// String returns a human-readable name for the filter mode.
func (m FilterMode) String() string {
	switch m {
	case MatchAll:
		return "all"
	case MatchAny:
		return "any"
	default:
		return fmt.Sprintf("filtermode(%d)", uint8(m))
	}
}

// GaugeReducer selects how gauge samples sharing one bucket and bitmask
// are reduced to a single value at read time.
type GaugeReducer uint8

const (
	// ReduceAverage reports the arithmetic mean of the samples. Averages
	// across buckets are weighted by sample count, so rolling up never
	// skews the mean.
	ReduceAverage GaugeReducer = iota

	// ReduceLast reports the most recent sample by timestamp.
	ReduceLast

	// ReduceMin reports the smallest sample.
	ReduceMin

	// ReduceMax reports the largest sample.
	ReduceMax

	// ReduceSum reports the sum of the samples.
	ReduceSum
)

// String returns a human-readable name for the reducer.
func (r GaugeReducer) String() string {
	switch r {
	case ReduceAverage:
		return "average"
	case ReduceLast:
		return "last"
	case ReduceMin:
		return "min"
	case ReduceMax:
		return "max"
	case ReduceSum:
		return "sum"
	default:
		return fmt.Sprintf("gaugereducer(%d)", uint8(r))
	}
}

// Valid reports whether r is a known reducer.
func (r GaugeReducer) Valid() bool {
	return r <= ReduceSum
}

// Value is the type-tagged payload of a single sample.
// Construct with GaugeValue, CountValue or RatioValue.
type Value struct {
	kind MetricType
	f    float64
	a    uint64
	b    uint64
}

// GaugeValue returns a gauge payload.
func GaugeValue(v float64) Value {
	return Value{kind: Gauge, f: v}
}

// CountValue returns a count payload.
func CountValue(n uint64) Value {
	return Value{kind: Count, a: n}
}

// RatioValue returns a ratio payload.
func RatioValue(numerator, denominator uint64) Value {
	return Value{kind: Ratio, a: numerator, b: denominator}
}

// Kind returns the metric type this payload belongs to.
// The zero Value has kind 0 and is invalid.
func (v Value) Kind() MetricType {
	return v.kind
}

// Gauge returns the gauge payload. Only meaningful when Kind() == Gauge.
func (v Value) Gauge() float64 {
	return v.f
}

// Count returns the count payload. Only meaningful when Kind() == Count.
func (v Value) Count() uint64 {
	return v.a
}

// Ratio returns the ratio payload. Only meaningful when Kind() == Ratio.
func (v Value) Ratio() (numerator, denominator uint64) {
	return v.a, v.b
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange constructs a TimeRange.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Validate reports an error if the range is empty or inverted.
func (r TimeRange) Validate() error {
	if !r.End.After(r.Start) {
		return fmt.Errorf("time range end %v must be after start %v", r.End, r.Start)
	}
	return nil
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Gap marks a sub-range of a query for which the requested granularity
// holds no data. It is part of a successful result, not an error: callers
// decide whether to retry at a finer granularity.
type Gap struct {
	Start time.Time
	End   time.Time
}

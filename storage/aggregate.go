package storage

import (
	"math"

	"github.com/hupe1980/metrigo/model"
)

// Aggregate is the per-(bucket, bitmask) accumulator. Only the fields for
// the owning series' metric type are populated.
//
// Gauges keep the full set of statistics (sum, min, max, last, sample
// count) so any reducer can be answered at read time and rollups stay
// exact: averages across buckets are reweighted by sample count instead
// of averaging averages.
type Aggregate struct {
	// Gauge
	Sum      float64
	Min      float64
	Max      float64
	Last     float64
	LastUnix int64
	Samples  uint64

	// Count
	Total uint64

	// Ratio. Numerator and denominator accumulate independently.
	Num uint64
	Den uint64

	// Degraded is set when a uint64 accumulator saturated at MaxUint64
	// instead of wrapping.
	Degraded bool
}

// satAdd adds two counters, clamping at MaxUint64 on overflow.
func satAdd(a, b uint64) (uint64, bool) {
	s := a + b
	if s < a {
		return math.MaxUint64, true
	}

	return s, false
}

// observe folds a single sample into the aggregate.
func (a *Aggregate) observe(mt model.MetricType, v model.Value, ts int64) {
	switch mt {
	case model.Gauge:
		g := v.Gauge()

		if a.Samples == 0 {
			a.Min = g
			a.Max = g
			a.Last = g
			a.LastUnix = ts
		} else {
			a.Min = math.Min(a.Min, g)
			a.Max = math.Max(a.Max, g)

			if ts >= a.LastUnix {
				a.Last = g
				a.LastUnix = ts
			}
		}

		a.Sum += g
		a.Samples++
	case model.Count:
		var sat bool

		a.Total, sat = satAdd(a.Total, v.Count())
		a.Degraded = a.Degraded || sat
	case model.Ratio:
		num, den := v.Ratio()

		var satN, satD bool

		a.Num, satN = satAdd(a.Num, num)
		a.Den, satD = satAdd(a.Den, den)
		a.Degraded = a.Degraded || satN || satD
	}
}

// Merge folds another aggregate of the same metric type into a.
// Used by rollup and by read-time merging across bitmasks.
func (a *Aggregate) Merge(mt model.MetricType, o *Aggregate) {
	switch mt {
	case model.Gauge:
		if o.Samples == 0 {
			return
		}

		if a.Samples == 0 {
			*a = *o

			return
		}

		a.Sum += o.Sum
		a.Min = math.Min(a.Min, o.Min)
		a.Max = math.Max(a.Max, o.Max)
		a.Samples += o.Samples

		if o.LastUnix >= a.LastUnix {
			a.Last = o.Last
			a.LastUnix = o.LastUnix
		}
	case model.Count:
		var sat bool

		a.Total, sat = satAdd(a.Total, o.Total)
		a.Degraded = a.Degraded || o.Degraded || sat
	case model.Ratio:
		var satN, satD bool

		a.Num, satN = satAdd(a.Num, o.Num)
		a.Den, satD = satAdd(a.Den, o.Den)
		a.Degraded = a.Degraded || o.Degraded || satN || satD
	}
}

// Value reduces the aggregate to a single number. The second return is
// false when no value can be produced (empty gauge, zero denominator).
func (a *Aggregate) Value(mt model.MetricType, r model.GaugeReducer) (float64, bool) {
	switch mt {
	case model.Gauge:
		if a.Samples == 0 {
			return 0, false
		}

		switch r {
		case model.ReduceLast:
			return a.Last, true
		case model.ReduceMin:
			return a.Min, true
		case model.ReduceMax:
			return a.Max, true
		case model.ReduceSum:
			return a.Sum, true
		default:
			return a.Sum / float64(a.Samples), true
		}
	case model.Count:
		return float64(a.Total), true
	case model.Ratio:
		if a.Den == 0 {
			return 0, false
		}

		return float64(a.Num) / float64(a.Den), true
	default:
		return 0, false
	}
}

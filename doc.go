// Package metrigo provides an embedded time series metric engine for Go.
//
// One Metrigo instance holds one logical metric: a set of series keyed by
// primary tags, with per-sample secondary tags encoded into a compact
// bitmask. Production-ready features include:
//
//   - Three metric types: Gauge, Count, and Ratio (independent
//     numerator/denominator aggregation)
//   - Dense series IDs over canonicalized primary tag sets with
//     Roaring-Bitmap posting lists for subset queries
//   - Secondary tags as a <=64-bit bitmask: filters are one or two
//     bitwise operations per record
//   - A granularity chain (default 10s/1m/1h) with idempotent rollup
//     and per-granularity retention horizons
//   - Saturating counters that degrade explicitly instead of wrapping
//   - Optional zstd/lz4 compression of sealed buckets
//   - Structured logging (log/slog) and pluggable metrics collection
//
// # Quick Start
//
//	ctx := context.Background()
//
//	db, err := metrigo.New()
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	_, err = db.Write(ctx, metrigo.Sample{
//	    Primary:   []model.Tag{model.T("host", "a"), model.T("env", "prod")},
//	    Secondary: []model.Tag{model.T("region", "eu-west")},
//	    Time:      time.Now(),
//	    Value:     model.GaugeValue(0.42),
//	})
//
// Query with a secondary filter:
//
//	res, err := db.Query(ctx, metrigo.QuerySpec{
//	    Primary:     []model.Tag{model.T("env", "prod")},
//	    Secondary:   []model.Tag{model.T("region", "eu-west")},
//	    Range:       model.NewTimeRange(from, to),
//	    Granularity: time.Minute,
//	})
//
// Sub-ranges without data at the requested granularity are reported in
// res.Gaps, never as an error: the engine does not backfill from a
// different granularity.
package metrigo

// Package model defines core types used throughout Metrigo.
//
// # Identity Types
//
//   - Tag: A key/value pair attached to a sample
//   - MetricType: Gauge, Count or Ratio payload shape
//   - Value: Type-tagged sample payload
//
// # Query Types
//
//   - TimeRange: Half-open [Start, End) query interval
//   - FilterMode: MatchAll / MatchAny secondary filter semantics
//   - GaugeReducer: Read-time reduction policy for gauges
//   - Gap: Sub-range of a query without data at the requested granularity
package model

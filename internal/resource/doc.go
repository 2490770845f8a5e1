// Package resource paces background maintenance work.
//
// The Controller bounds concurrent background jobs with a weighted
// semaphore and rate-limits the series processed per second with a token
// bucket, so sweeps (rollup, retention) cannot starve the foreground
// write and query paths.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional pacing without nil checks everywhere.
package resource

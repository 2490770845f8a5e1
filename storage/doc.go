// Package storage implements the in-memory metric value store.
//
// Data is laid out per (series, granularity) as a partition of
// time-aligned buckets. Each bucket holds one aggregate per secondary
// bitmask. Open buckets accept merges in place; once their interval has
// elapsed they are sealed into a sorted record slice and optionally
// compacted into a compressed block. Rollup bookkeeping (folded finer
// buckets, staleness after late writes) lives on the coarse buckets so
// that folding stays idempotent across repeated sweeps.
package storage

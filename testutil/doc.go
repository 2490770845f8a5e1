// Package testutil provides testing utilities for Metrigo.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded thread-safe RNG, generators for random tag sets
// and sample streams, and a naive reference aggregator for verifying
// engine results against ground truth.
//
// # Random Sample Generation
//
//	rng := testutil.NewRNG(seed)
//	samples := testutil.GenGaugeSamples(rng, 1000, start, end)
//
// # Ground Truth
//
//	want := testutil.BucketSums(samples, time.Minute)
package testutil

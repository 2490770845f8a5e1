// Package engine provides the coordination layer for Metrigo.
//
// The Engine wires the tag dictionary, series catalog and value store
// together and owns the maintenance lifecycle:
//   - the write path (canonicalize primary tags, encode secondary tags,
//     fold the sample into its raw bucket)
//   - the sweep: rollup of sealed finer buckets into coarser ones,
//     sealing/compaction, and retention eviction
//   - the query path (primary shortlist, bitmask filtering, per-bucket
//     merging and gap reporting)
//
// The metrigo package is the public facade; it translates engine-layer
// sentinels into its public error contract.
package engine

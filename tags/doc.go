// Package tags implements string interning and the secondary tag bitset
// codec.
//
// The Dictionary maps tag strings to stable uint32 codes so that hot paths
// compare integers instead of strings. The Codec assigns one bit of a
// fixed-width bitmask to each distinct secondary (key, value) pair, which
// makes per-sample secondary tag sets a single machine word and turns
// filter evaluation into one or two bitwise operations.
package tags

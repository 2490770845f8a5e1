// Package series implements the catalog mapping canonicalized primary tag
// sets to dense series identifiers.
//
// Tag sets are canonicalized through the shared dictionary (sorted by
// interned code), hashed with xxhash and resolved through a sharded map,
// so concurrent writers racing to create the same series converge on a
// single identifier without a global catalog lock. A roaring-bitmap
// posting list per primary pair answers subset queries at read time.
package series

package storage

import (
	"slices"
	"sync"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/tags"
)

// Record pairs a secondary bitmask with its aggregate.
type Record struct {
	Mask tags.Mask
	Agg  Aggregate
}

// Bucket holds one aggregate per secondary bitmask for a single aligned
// time window. A bucket is open (mutable map), sealed (sorted slice) or
// compacted (encoded block). Late writes reopen it transparently.
type Bucket struct {
	p     *Partition
	start int64

	mu       sync.Mutex
	open     map[tags.Mask]*Aggregate
	recs     []Record
	block    []byte
	count    int
	folded   map[int64]struct{}
	foldedUp bool
	stale    bool
}

func newBucket(p *Partition, start int64) *Bucket {
	return &Bucket{
		p:     p,
		start: start,
		open:  make(map[tags.Mask]*Aggregate),
	}
}

// Start returns the inclusive start of the bucket window in unix nanos.
func (b *Bucket) Start() int64 {
	return b.start
}

// End returns the exclusive end of the bucket window in unix nanos.
func (b *Bucket) End() int64 {
	return b.start + int64(b.p.interval)
}

// Sealed reports whether the bucket is in sealed or compacted form.
func (b *Bucket) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.open == nil
}

// Len returns the number of distinct bitmask records.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open != nil {
		return len(b.open)
	}

	return b.count
}

// append folds one sample into the bucket, reopening it if sealed. The
// bool reports whether the bucket's window was already handed to rollup,
// in which case the caller must invalidate the coarser aggregate. The
// check shares the mutex with DrainForFold, so a sample is either part
// of the drained snapshot or reported late, never neither.
func (b *Bucket) append(v model.Value, mask tags.Mask, ts int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.reopenLocked(); err != nil {
		return false, err
	}

	agg, ok := b.open[mask]
	if !ok {
		agg = &Aggregate{}
		b.open[mask] = agg
	}

	agg.observe(b.p.mt, v, ts)

	return b.foldedUp, nil
}

// MergeAggregate folds a finished aggregate into the bucket. Used by the
// rollup path when folding a finer bucket into a coarser one.
func (b *Bucket) MergeAggregate(mask tags.Mask, o *Aggregate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.reopenLocked(); err != nil {
		return err
	}

	agg, ok := b.open[mask]
	if !ok {
		agg = &Aggregate{}
		b.open[mask] = agg
	}

	agg.Merge(b.p.mt, o)

	return nil
}

// reopenLocked restores the open map from sealed or compacted form.
func (b *Bucket) reopenLocked() error {
	if b.open != nil {
		return nil
	}

	recs := b.recs

	if recs == nil && b.block != nil {
		decoded, err := b.p.codec.DecodeRecords(b.p.mt, b.block)
		if err != nil {
			return err
		}

		recs = decoded
	}

	b.open = make(map[tags.Mask]*Aggregate, len(recs))

	for i := range recs {
		agg := recs[i].Agg
		b.open[recs[i].Mask] = &agg
	}

	b.recs = nil
	b.block = nil

	return nil
}

// snapshotLocked drains the open map into a mask-sorted slice.
func (b *Bucket) snapshotLocked() []Record {
	recs := make([]Record, 0, len(b.open))

	for mask, agg := range b.open {
		recs = append(recs, Record{Mask: mask, Agg: *agg})
	}

	slices.SortFunc(recs, func(a, b Record) int {
		switch {
		case a.Mask < b.Mask:
			return -1
		case a.Mask > b.Mask:
			return 1
		default:
			return 0
		}
	})

	return recs
}

// Records returns a point-in-time copy of the bucket's records sorted by
// bitmask. Readers never observe a half-applied merge.
func (b *Bucket) Records() ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open != nil {
		return b.snapshotLocked(), nil
	}

	if b.recs != nil {
		return b.recs, nil
	}

	if b.block == nil {
		return nil, nil
	}

	return b.p.codec.DecodeRecords(b.p.mt, b.block)
}

// DrainForFold returns the bucket's records for rollup and marks the
// bucket folded-up in the same critical section. Appends that land after
// the snapshot observe the mark and report themselves late.
func (b *Bucket) DrainForFold() ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		recs []Record
		err  error
	)

	switch {
	case b.open != nil:
		recs = b.snapshotLocked()
	case b.recs != nil:
		recs = b.recs
	case b.block != nil:
		recs, err = b.p.codec.DecodeRecords(b.p.mt, b.block)
		if err != nil {
			return nil, err
		}
	}

	b.foldedUp = true

	return recs, nil
}

// FoldedUp reports whether the bucket's window was handed to rollup.
func (b *Bucket) FoldedUp() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.foldedUp
}

// seal converts the open map into an immutable sorted slice. If compact is
// set and the partition's codec compresses, the slice is packed into an
// encoded block instead.
func (b *Bucket) seal(compact bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open != nil {
		recs := b.snapshotLocked()

		b.open = nil
		b.recs = recs
		b.count = len(recs)
	}

	if !compact || b.recs == nil || b.p.codec.Compression() == CompressionNone {
		return nil
	}

	block, err := b.p.codec.EncodeRecords(b.p.mt, b.recs)
	if err != nil {
		return err
	}

	b.block = block
	b.recs = nil

	return nil
}

// Folded reports whether the finer bucket at start was already merged in.
func (b *Bucket) Folded(start int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.folded[start]

	return ok
}

// MarkFolded records that the finer bucket at start has been merged in.
func (b *Bucket) MarkFolded(start int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.folded == nil {
		b.folded = make(map[int64]struct{})
	}

	b.folded[start] = struct{}{}
}

// Stale reports whether a late write invalidated this bucket's rollup.
func (b *Bucket) Stale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stale
}

// MarkStale flags the bucket for a rebuild on the next sweep.
func (b *Bucket) MarkStale() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stale = true
}

// ClearStale drops the rebuild flag without touching the aggregates.
func (b *Bucket) ClearStale() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stale = false
}

// ResetForRebuild clears aggregates and fold bookkeeping so the bucket can
// be refolded from scratch.
func (b *Bucket) ResetForRebuild() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.open = make(map[tags.Mask]*Aggregate)
	b.recs = nil
	b.block = nil
	b.count = 0
	b.folded = nil
	b.stale = false
}

package storage

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/metrigo/model"
)

// alignTo floors t to a multiple of interval, handling pre-epoch times.
func alignTo(t, interval int64) int64 {
	return t - ((t%interval)+interval)%interval
}

// Partition is the ordered bucket list for one (series, granularity).
type Partition struct {
	interval time.Duration
	mt       model.MetricType
	codec    *BlockCodec

	mu      sync.RWMutex
	buckets []*Bucket // sorted by start
	cursor  int64     // rollup high-water mark: everything before it is folded into the coarser level
	floor   int64     // eviction floor: bucket starts below it are gone for good
	folded  int64     // fold watermark: windows ending at or below it were handed to rollup
}

func newPartition(interval time.Duration, mt model.MetricType, codec *BlockCodec) *Partition {
	return &Partition{
		interval: interval,
		mt:       mt,
		codec:    codec,
		cursor:   math.MinInt64,
		floor:    math.MinInt64,
		folded:   math.MinInt64,
	}
}

// Interval returns the bucket width.
func (p *Partition) Interval() time.Duration {
	return p.interval
}

// Type returns the metric type stored in this partition.
func (p *Partition) Type() model.MetricType {
	return p.mt
}

// Align floors t to this partition's bucket grid.
func (p *Partition) Align(t int64) int64 {
	return alignTo(t, int64(p.interval))
}

// Bucket returns the bucket with the given aligned start, creating it when
// create is set. Returns nil when absent and create is false.
func (p *Partition) Bucket(start int64, create bool) *Bucket {
	p.mu.RLock()
	b := p.findLocked(start)
	p.mu.RUnlock()

	if b != nil || !create {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b := p.findLocked(start); b != nil {
		return b
	}

	b = newBucket(p, start)

	// A bucket created inside an already-folded window starts out marked
	// folded-up: the rollup pass that consumed the window will not come
	// back for it, so appends must report themselves late.
	b.foldedUp = start+int64(p.interval) <= p.folded

	i, _ := slices.BinarySearchFunc(p.buckets, start, func(b *Bucket, s int64) int {
		switch {
		case b.start < s:
			return -1
		case b.start > s:
			return 1
		default:
			return 0
		}
	})

	p.buckets = slices.Insert(p.buckets, i, b)

	return b
}

func (p *Partition) findLocked(start int64) *Bucket {
	i, ok := slices.BinarySearchFunc(p.buckets, start, func(b *Bucket, s int64) int {
		switch {
		case b.start < s:
			return -1
		case b.start > s:
			return 1
		default:
			return 0
		}
	})

	if !ok {
		return nil
	}

	return p.buckets[i]
}

// Range returns the buckets with start in [from, to), oldest first.
func (p *Partition) Range(from, to int64) []*Bucket {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Bucket, 0, 8)

	for _, b := range p.buckets {
		if b.start >= to {
			break
		}

		if b.start >= from {
			out = append(out, b)
		}
	}

	return out
}

// BucketsForFold returns the buckets with start in [from, to), oldest
// first, and advances the fold watermark to to in the same critical
// section. Together with Bucket's creation-time folded-up marking this
// makes the fold-or-late decision race free: a bucket is either part of
// the returned snapshot or its appends report late.
func (p *Partition) BucketsForFold(from, to int64) []*Bucket {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Bucket, 0, 8)

	for _, b := range p.buckets {
		if b.start >= to {
			break
		}

		if b.start >= from {
			out = append(out, b)
		}
	}

	if to > p.folded {
		p.folded = to
	}

	return out
}

// Bounds returns the start of the oldest and newest bucket.
func (p *Partition) Bounds() (first, last int64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.buckets) == 0 {
		return 0, 0, false
	}

	return p.buckets[0].start, p.buckets[len(p.buckets)-1].start, true
}

// Cursor returns the rollup high-water mark.
func (p *Partition) Cursor() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.cursor
}

// SetCursor advances the rollup high-water mark. It never moves backwards.
func (p *Partition) SetCursor(c int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c > p.cursor {
		p.cursor = c
	}
}

// Floor returns the eviction floor.
func (p *Partition) Floor() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.floor
}

// EvictBefore drops all buckets whose window ends at or before end and
// raises the eviction floor accordingly. Returns the number of buckets
// dropped. In-flight readers holding bucket pointers keep working on the
// detached buckets.
func (p *Partition) EvictBefore(end int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	iv := int64(p.interval)

	n := 0
	for n < len(p.buckets) && p.buckets[n].start+iv <= end {
		n++
	}

	if n > 0 {
		p.buckets = slices.Delete(p.buckets, 0, n)
	}

	start := alignTo(end, iv)
	if start > p.floor {
		p.floor = start
	}

	return n
}

// SealBefore seals (and optionally compacts) all open buckets whose window
// ends at or before end. Returns the number of buckets transitioned.
func (p *Partition) SealBefore(end int64, compact bool) (int, error) {
	p.mu.RLock()
	todo := make([]*Bucket, 0, 8)

	for _, b := range p.buckets {
		if b.start+int64(p.interval) > end {
			break
		}

		todo = append(todo, b)
	}
	p.mu.RUnlock()

	sealed := 0

	for _, b := range todo {
		if b.Sealed() {
			continue
		}

		if err := b.seal(compact); err != nil {
			return sealed, err
		}

		sealed++
	}

	return sealed, nil
}

// StaleBuckets returns the buckets flagged for rebuild.
func (p *Partition) StaleBuckets() []*Bucket {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Bucket

	for _, b := range p.buckets {
		if b.Stale() {
			out = append(out, b)
		}
	}

	return out
}

// Stats returns bucket and record counts.
func (p *Partition) Stats() (buckets, sealed, records int) {
	p.mu.RLock()
	snapshot := slices.Clone(p.buckets)
	p.mu.RUnlock()

	for _, b := range snapshot {
		buckets++

		if b.Sealed() {
			sealed++
		}

		records += b.Len()
	}

	return buckets, sealed, records
}

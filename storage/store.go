package storage

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/series"
	"github.com/hupe1980/metrigo/tags"
)

// ErrBucketExpired is returned when a sample's timestamp falls into a
// window that retention has already evicted.
var ErrBucketExpired = errors.New("bucket expired")

// Config holds the store's layout parameters.
type Config struct {
	// Granularities are the bucket widths per level, finest first.
	Granularities []time.Duration

	// Compression is applied to sealed blocks.
	Compression Compression
}

// Entry is one (bucket, bitmask) aggregate yielded by Read.
type Entry struct {
	Start int64 // bucket start, unix nanos
	Mask  tags.Mask
	Agg   Aggregate
}

type partKey struct {
	sid   series.ID
	level int
}

// Store is the in-memory metric value store: a partition per
// (series, granularity level). All methods are safe for concurrent use.
type Store struct {
	granularities []time.Duration
	codec         *BlockCodec

	mu    sync.RWMutex
	parts map[partKey]*Partition
}

// NewStore creates an empty store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Granularities) == 0 {
		return nil, errors.New("at least one granularity required")
	}

	codec, err := NewBlockCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	return &Store{
		granularities: cfg.Granularities,
		codec:         codec,
		parts:         make(map[partKey]*Partition),
	}, nil
}

// Levels returns the number of granularity levels.
func (s *Store) Levels() int {
	return len(s.granularities)
}

// Granularity returns the bucket width of a level.
func (s *Store) Granularity(level int) time.Duration {
	return s.granularities[level]
}

// Partition returns the partition for (sid, level), or nil if the series
// has no data at that level.
func (s *Store) Partition(sid series.ID, level int) *Partition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.parts[partKey{sid: sid, level: level}]
}

// EnsurePartition returns the partition for (sid, level), creating it on
// first use.
func (s *Store) EnsurePartition(sid series.ID, level int, mt model.MetricType) *Partition {
	key := partKey{sid: sid, level: level}

	s.mu.RLock()
	p := s.parts[key]
	s.mu.RUnlock()

	if p != nil {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.parts[key]; p != nil {
		return p
	}

	p = newPartition(s.granularities[level], mt, s.codec)
	s.parts[key] = p

	return p
}

// AppendRaw folds one sample into its raw-granularity bucket. Samples may
// arrive out of order; only windows at or below expiredBefore (unix nanos)
// are rejected with ErrBucketExpired. Returns the bucket start the sample
// landed in and whether the window was already handed to rollup, in which
// case the caller must invalidate the coarser aggregate.
func (s *Store) AppendRaw(sid series.ID, mt model.MetricType, ts time.Time, v model.Value, mask tags.Mask, expiredBefore int64) (int64, bool, error) {
	p := s.EnsurePartition(sid, 0, mt)

	start := p.Align(ts.UnixNano())

	if end := start + int64(p.interval); end <= expiredBefore {
		return 0, false, fmt.Errorf("%w: window ending %s is past the retention horizon",
			ErrBucketExpired, time.Unix(0, end).UTC().Format(time.RFC3339))
	}

	if start < p.Floor() {
		return 0, false, fmt.Errorf("%w: window starting %s was evicted",
			ErrBucketExpired, time.Unix(0, start).UTC().Format(time.RFC3339))
	}

	b := p.Bucket(start, true)

	late, err := b.append(v, mask, ts.UnixNano())
	if err != nil {
		return 0, false, err
	}

	return start, late, nil
}

// Read yields the (bucket, bitmask) aggregates of one series at one level
// whose windows overlap tr, oldest bucket first, masks ascending within a
// bucket. The sequence is restartable.
func (s *Store) Read(sid series.ID, level int, tr model.TimeRange) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		p := s.Partition(sid, level)
		if p == nil {
			return
		}

		from := p.Align(tr.Start.UnixNano())
		to := tr.End.UnixNano()

		for _, b := range p.Range(from, to) {
			recs, err := b.Records()
			if err != nil {
				yield(Entry{Start: b.Start()}, err)

				return
			}

			for i := range recs {
				e := Entry{Start: b.Start(), Mask: recs[i].Mask, Agg: recs[i].Agg}
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

// DropSeries removes all partitions of a series.
func (s *Store) DropSeries(sid series.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for level := range s.granularities {
		delete(s.parts, partKey{sid: sid, level: level})
	}
}

// LevelStats summarizes one granularity level.
type LevelStats struct {
	Granularity time.Duration
	Partitions  int
	Buckets     int
	Sealed      int
	Records     int
}

// Stats returns per-level counters.
func (s *Store) Stats() []LevelStats {
	out := make([]LevelStats, len(s.granularities))

	for i, g := range s.granularities {
		out[i].Granularity = g
	}

	s.mu.RLock()
	type lp struct {
		level int
		p     *Partition
	}

	parts := make([]lp, 0, len(s.parts))
	for k, p := range s.parts {
		parts = append(parts, lp{level: k.level, p: p})
	}
	s.mu.RUnlock()

	for _, e := range parts {
		buckets, sealed, records := e.p.Stats()

		out[e.level].Partitions++
		out[e.level].Buckets += buckets
		out[e.level].Sealed += sealed
		out[e.level].Records += records
	}

	return out
}

package engine

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/metrigo/series"
)

// SweepStats summarizes one maintenance pass.
type SweepStats struct {
	// SeriesSwept is the number of dirty series processed by rollup.
	SeriesSwept int

	// BucketsFolded is the number of finer buckets merged into coarser ones.
	BucketsFolded int

	// BucketsRebuilt is the number of coarse buckets refolded after a
	// late write invalidated them.
	BucketsRebuilt int

	// RebuildsSkipped counts rebuilds abandoned because the finer data
	// was partially evicted.
	RebuildsSkipped int

	// BucketsSealed is the number of buckets sealed or compacted.
	BucketsSealed int

	// BucketsEvicted is the number of buckets dropped by retention.
	BucketsEvicted int
}

// Sweep runs one maintenance pass: rollup of dirty series, sealing and
// compaction of elapsed buckets, and retention eviction. Sweeps are
// serialized through the resource controller, so a manual call and the
// background loop never interleave.
func (e *Engine) Sweep(ctx context.Context) (SweepStats, error) {
	if e.closed.Load() {
		return SweepStats{}, ErrClosed
	}

	return e.sweep(ctx)
}

func (e *Engine) sweep(ctx context.Context) (SweepStats, error) {
	if err := e.ctrl.AcquireBackground(ctx); err != nil {
		return SweepStats{}, err
	}
	defer e.ctrl.ReleaseBackground()

	now := e.clock.Now().UnixNano()

	var (
		mu    sync.Mutex
		stats SweepStats
	)

	dirty := e.drainDirty()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.SweepConcurrency)

	for _, sid := range dirty {
		g.Go(func() error {
			if err := e.ctrl.WaitOp(gctx); err != nil {
				return err
			}

			st, err := e.rollupSeries(gctx, sid, now)
			if err != nil {
				return err
			}

			if st.pending {
				// More finer data will become foldable later; keep the
				// series on the worklist.
				e.markDirty(sid)
			}

			mu.Lock()
			stats.SeriesSwept++
			stats.BucketsFolded += st.folded
			stats.BucketsRebuilt += st.rebuilt
			stats.RebuildsSkipped += st.skipped
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, sid := range e.catalog.IDs() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		sealed, err := e.sealSeries(sid, now)
		if err != nil {
			return stats, err
		}

		stats.BucketsSealed += sealed
		stats.BucketsEvicted += e.retainSeries(sid, now)
	}

	return stats, nil
}

// sealSeries seals elapsed buckets. Buckets already folded into a coarser
// level are compacted; the rest stay uncompacted so the next fold does
// not pay a decode.
func (e *Engine) sealSeries(sid series.ID, now int64) (int, error) {
	sealed := 0

	for level := 0; level < e.store.Levels(); level++ {
		p := e.store.Partition(sid, level)
		if p == nil {
			continue
		}

		if level == e.store.Levels()-1 {
			n, err := p.SealBefore(now, true)
			if err != nil {
				return sealed, err
			}

			sealed += n

			continue
		}

		compactBefore := int64(math.MinInt64)

		if cp := e.store.Partition(sid, level+1); cp != nil {
			compactBefore = cp.Cursor()
		}

		if compactBefore > math.MinInt64 {
			n, err := p.SealBefore(compactBefore, true)
			if err != nil {
				return sealed, err
			}

			sealed += n
		}

		n, err := p.SealBefore(now, false)
		if err != nil {
			return sealed, err
		}

		sealed += n
	}

	return sealed, nil
}

// retainSeries evicts buckets past their horizon. A finer bucket is only
// evicted once its window has been folded into the coarser level, so
// rolled-up data never disappears before its summary exists.
func (e *Engine) retainSeries(sid series.ID, now int64) int {
	evicted := 0

	for level := e.store.Levels() - 1; level >= 0; level-- {
		p := e.store.Partition(sid, level)
		if p == nil {
			continue
		}

		cutoff := now - int64(e.cfg.Retention[level])

		if level < e.store.Levels()-1 {
			cp := e.store.Partition(sid, level+1)
			if cp == nil {
				continue
			}

			cursor := cp.Cursor()
			if cursor == math.MinInt64 {
				continue
			}

			if cursor < cutoff {
				cutoff = cursor
			}
		}

		evicted += p.EvictBefore(cutoff)
	}

	return evicted
}

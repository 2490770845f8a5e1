package engine

import (
	"context"
	"math"

	"github.com/hupe1980/metrigo/series"
	"github.com/hupe1980/metrigo/storage"
)

type rollupStats struct {
	folded  int
	rebuilt int
	skipped int
	pending bool
}

// rollupSeries folds sealed finer buckets into coarser ones for every
// level of the chain, oldest window first. Folding is idempotent: each
// coarse bucket remembers which finer windows it already absorbed, and a
// partition cursor marks the point up to which folding is complete.
func (e *Engine) rollupSeries(ctx context.Context, sid series.ID, now int64) (rollupStats, error) {
	var st rollupStats

	for level := 1; level < e.store.Levels(); level++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		fine := e.store.Partition(sid, level-1)
		if fine == nil {
			continue
		}

		first, last, ok := fine.Bounds()
		if !ok {
			continue
		}

		coarse := e.store.EnsurePartition(sid, level, fine.Type())
		iv := int64(coarse.Interval())

		// Rebuild windows invalidated by late writes before advancing.
		for _, cb := range coarse.StaleBuckets() {
			if fine.Floor() > cb.Start() {
				// Part of the window was already evicted at the finer
				// level; a rebuild would lose data. Keep the existing
				// aggregate, the late sample stays visible at the finer
				// granularity only.
				cb.ClearStale()
				st.skipped++

				continue
			}

			// The rebuild changes this bucket's contents, so any level
			// that already folded it must rebuild too. Levels are walked
			// finest first, so the mark is picked up in this same pass.
			if cb.FoldedUp() && level+1 < e.store.Levels() {
				if cp := e.store.Partition(sid, level+1); cp != nil {
					cp.Bucket(cp.Align(cb.Start()), true).MarkStale()
				}
			}

			cb.ResetForRebuild()

			if _, err := e.foldWindow(fine, coarse, cb.Start(), iv); err != nil {
				return st, err
			}

			st.rebuilt++
		}

		cursor := coarse.Cursor()
		if cursor == math.MinInt64 {
			cursor = coarse.Align(first)
		}

		// end is the exclusive bound of windows holding finer data.
		end := coarse.Align(last) + iv

		for cursor < end && cursor+iv <= now {
			n, err := e.foldWindow(fine, coarse, cursor, iv)
			if err != nil {
				return st, err
			}

			st.folded += n
			cursor += iv
			coarse.SetCursor(cursor)
		}

		if cursor < end {
			st.pending = true
		}
	}

	return st, nil
}

// foldWindow merges every finer bucket inside [start, start+iv) into the
// coarse bucket at start, skipping buckets already folded. Returns the
// number of finer buckets absorbed. The finer buckets are drained rather
// than read: an append racing with the drain either lands in the snapshot
// or reports itself late, so no sample can fall between fold and rebuild.
func (e *Engine) foldWindow(fine, coarse *storage.Partition, start, iv int64) (int, error) {
	fbs := fine.BucketsForFold(start, start+iv)
	if len(fbs) == 0 {
		return 0, nil
	}

	cb := coarse.Bucket(start, true)

	folded := 0

	for _, fb := range fbs {
		if cb.Folded(fb.Start()) {
			continue
		}

		recs, err := fb.DrainForFold()
		if err != nil {
			return folded, err
		}

		for i := range recs {
			if err := cb.MergeAggregate(recs[i].Mask, &recs[i].Agg); err != nil {
				return folded, err
			}
		}

		cb.MarkFolded(fb.Start())
		folded++
	}

	return folded, nil
}

package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/benbjohnson/clock"

	"github.com/hupe1980/metrigo/internal/resource"
	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/series"
	"github.com/hupe1980/metrigo/storage"
	"github.com/hupe1980/metrigo/tags"
)

// Engine coordinates the dictionary, catalog and value store of one
// logical metric. All methods are safe for concurrent use.
type Engine struct {
	cfg   Config
	clock clock.Clock

	dict    *tags.Dictionary
	codec   *tags.Codec
	catalog *series.Catalog
	store   *storage.Store
	ctrl    *resource.Controller

	dirtyMu sync.Mutex
	dirty   *roaring.Bitmap

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates an engine from cfg, completing it with defaults first.
// A background sweep goroutine is started unless SweepInterval is 0.
func New(cfg Config) (*Engine, error) {
	cfg.withDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dict := tags.NewDictionary(cfg.DictionaryLimit)

	codec, err := tags.NewCodec(dict, cfg.SecondaryBitWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	store, err := storage.NewStore(storage.Config{
		Granularities: cfg.Granularities,
		Compression:   cfg.Compression,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e := &Engine{
		cfg:     cfg,
		clock:   cfg.Clock,
		dict:    dict,
		codec:   codec,
		catalog: series.NewCatalog(dict),
		store:   store,
		ctrl: resource.NewController(resource.Config{
			MaxBackgroundWorkers: 1,
			OpsPerSec:            cfg.SweepSeriesPerSec,
		}),
		dirty: roaring.New(),
		done:  make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		e.wg.Add(1)

		go e.sweepLoop()
	}

	return e, nil
}

// Write folds one sample into the store. It registers the series on first
// use and reports whether it did. Out-of-order samples are accepted into
// their historical bucket as long as retention has not passed it.
func (e *Engine) Write(ctx context.Context, primary, secondary []model.Tag, mt model.MetricType, ts time.Time, v model.Value) (series.ID, bool, error) {
	if e.closed.Load() {
		return 0, false, ErrClosed
	}

	if !mt.Valid() {
		return 0, false, fmt.Errorf("%w: unknown metric type %d", ErrInvalidValue, uint8(mt))
	}

	if v.Kind() != mt {
		return 0, false, fmt.Errorf("%w: %s payload written as %s", ErrInvalidValue, v.Kind(), mt)
	}

	if mt == model.Gauge {
		if g := v.Gauge(); math.IsNaN(g) || math.IsInf(g, 0) {
			return 0, false, fmt.Errorf("%w: gauge must be finite, got %v", ErrInvalidValue, g)
		}
	}

	// Encode before touching the catalog so a rejected sample leaves no
	// half-registered series behind.
	mask, err := e.codec.Encode(secondary)
	if err != nil {
		return 0, false, err
	}

	sid, created, err := e.catalog.ResolveOrCreate(primary, mt)
	if err != nil {
		return 0, false, err
	}

	expiredBefore := e.clock.Now().Add(-e.cfg.Retention[0]).UnixNano()

	start, late, err := e.store.AppendRaw(sid, mt, ts, v, mask, expiredBefore)
	if err != nil {
		return sid, created, err
	}

	e.markDirty(sid)

	if late {
		e.markStaleCoarse(sid, start)
	}

	return sid, created, nil
}

// markStaleCoarse flags the coarse bucket covering a window whose raw
// contents were already handed to rollup, so the next sweep rebuilds it.
// Invalidation of even coarser levels is propagated by the rebuild itself.
func (e *Engine) markStaleCoarse(sid series.ID, rawStart int64) {
	if e.store.Levels() < 2 {
		return
	}

	p := e.store.Partition(sid, 1)
	if p == nil {
		return
	}

	p.Bucket(p.Align(rawStart), true).MarkStale()
}

// DeleteSeries drops a series and all its data. Reports whether the
// series existed.
func (e *Engine) DeleteSeries(ctx context.Context, primary []model.Tag) (bool, error) {
	if e.closed.Load() {
		return false, ErrClosed
	}

	sid, ok := e.catalog.Lookup(primary)
	if !ok {
		return false, nil
	}

	e.catalog.Delete(sid)
	e.store.DropSeries(sid)

	e.dirtyMu.Lock()
	e.dirty.Remove(uint32(sid))
	e.dirtyMu.Unlock()

	return true, nil
}

func (e *Engine) markDirty(sid series.ID) {
	e.dirtyMu.Lock()
	e.dirty.Add(uint32(sid))
	e.dirtyMu.Unlock()
}

// drainDirty atomically takes the current dirty set.
func (e *Engine) drainDirty() []series.ID {
	e.dirtyMu.Lock()
	bm := e.dirty
	e.dirty = roaring.New()
	e.dirtyMu.Unlock()

	out := make([]series.ID, 0, bm.GetCardinality())

	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, series.ID(it.Next()))
	}

	return out
}

// levelOf resolves a granularity to its level index.
func (e *Engine) levelOf(g time.Duration) (int, error) {
	for i := 0; i < e.store.Levels(); i++ {
		if e.store.Granularity(i) == g {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: %v is not in the configured chain", ErrUnknownGranularity, g)
}

// Stats is a point-in-time snapshot of engine state.
type Stats struct {
	Series            int
	DictionarySize    int
	SecondaryBitsUsed int
	SecondaryBitWidth int
	Levels            []storage.LevelStats
}

// Stats returns a snapshot of catalog, dictionary and store counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Series:            e.catalog.Len(),
		DictionarySize:    e.dict.Len(),
		SecondaryBitsUsed: e.codec.Used(),
		SecondaryBitWidth: e.codec.Width(),
		Levels:            e.store.Stats(),
	}
}

// Close stops the background sweep and rejects further operations.
// Close is idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(e.done)
	e.wg.Wait()

	return nil
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	t := e.clock.Ticker(e.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-t.C:
			if stats, err := e.sweep(context.Background()); err != nil {
				e.cfg.Logger.Error("sweep failed", "error", err)
			} else {
				e.cfg.Logger.Debug("sweep done",
					"series", stats.SeriesSwept,
					"folded", stats.BucketsFolded,
					"evicted", stats.BucketsEvicted,
				)
			}
		}
	}
}

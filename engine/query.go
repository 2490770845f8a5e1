package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/series"
	"github.com/hupe1980/metrigo/storage"
	"github.com/hupe1980/metrigo/tags"
)

// QuerySpec describes one read.
type QuerySpec struct {
	// Primary selects series whose primary tag set is a superset of these
	// pairs. Empty selects every series.
	Primary []model.Tag

	// Secondary filters samples inside matched series by bitmask.
	// Empty means no secondary filtering.
	Secondary []model.Tag

	// SecondaryMode selects MatchAll (default) or MatchAny semantics.
	SecondaryMode model.FilterMode

	// Range is the half-open query interval.
	Range model.TimeRange

	// Granularity must be one of the configured chain. Queries never
	// backfill from a different granularity.
	Granularity time.Duration

	// Reducer overrides the engine's default gauge reducer.
	// If nil, the engine default is used.
	Reducer *model.GaugeReducer

	// Breakdown additionally reports per-bitmask groups for each point.
	Breakdown bool
}

// Group is one secondary tag combination inside a point.
type Group struct {
	Tags     []model.Tag
	Value    float64
	Degraded bool
}

// Point is one bucket of a series result.
type Point struct {
	Start    time.Time
	Value    float64
	Degraded bool

	// Groups is populated when QuerySpec.Breakdown is set.
	Groups []Group
}

// SeriesResult holds the points of one matched series.
type SeriesResult struct {
	ID     series.ID
	Tags   []model.Tag
	Type   model.MetricType
	Points []Point
}

// Result is a query answer. Sub-ranges without data at the requested
// granularity are reported as Gaps, never as an error and never
// backfilled from another granularity.
type Result struct {
	Granularity time.Duration
	Series      []SeriesResult
	Gaps        []model.Gap
}

// Query executes a read: shortlist series by primary tags, filter samples
// by secondary bitmask, merge per bucket, and report gaps.
func (e *Engine) Query(ctx context.Context, q QuerySpec) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	if err := q.Range.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	level, err := e.levelOf(q.Granularity)
	if err != nil {
		return nil, err
	}

	reducer := e.cfg.GaugeReducer
	if q.Reducer != nil {
		if !q.Reducer.Valid() {
			return nil, fmt.Errorf("%w: unknown gauge reducer %d", ErrInvalidValue, uint8(*q.Reducer))
		}

		reducer = *q.Reducer
	}

	filter, matchable := e.compileFilter(q)

	res := &Result{Granularity: q.Granularity}

	now := e.clock.Now().UnixNano()

	var sids []series.ID

	if matchable {
		sids = e.catalog.Find(q.Primary)
	}

	results := make([]*SeriesResult, len(sids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.QueryConcurrency)

	for i, sid := range sids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			sr, err := e.querySeries(sid, level, q, filter, reducer)
			if err != nil {
				return err
			}

			results[i] = sr

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, sr := range results {
		if sr != nil {
			res.Series = append(res.Series, *sr)
		}
	}

	res.Gaps = e.computeGaps(sids, level, q.Range, now)

	return res, nil
}

// compileFilter turns the secondary predicate into a bitmask filter.
// The second return is false when the predicate provably matches nothing
// (an unknown pair under MatchAll, or no known pair under MatchAny).
func (e *Engine) compileFilter(q QuerySpec) (tags.Filter, bool) {
	if len(q.Secondary) == 0 {
		return tags.Filter{}, true
	}

	mask, allKnown := e.codec.Lookup(q.Secondary)

	if q.SecondaryMode == model.MatchAll && !allKnown {
		return tags.Filter{}, false
	}

	if mask == 0 {
		// MatchAny with no known pair: nothing can intersect.
		return tags.Filter{}, false
	}

	return tags.Filter{Mask: mask, Mode: q.SecondaryMode}, true
}

// querySeries reads one series at one level and merges records per bucket.
// Returns nil when no sample in the range passes the filter.
func (e *Engine) querySeries(sid series.ID, level int, q QuerySpec, filter tags.Filter, reducer model.GaugeReducer) (*SeriesResult, error) {
	meta, ok := e.catalog.Meta(sid)
	if !ok {
		// Deleted between shortlist and read.
		return nil, nil
	}

	var (
		points   []Point
		cur      storage.Aggregate
		curGrps  []Group
		curStart int64 = -1 << 62
		any      bool
	)

	flush := func() {
		defer func() {
			cur = storage.Aggregate{}
			curGrps = nil
			any = false
		}()

		if !any {
			return
		}

		// Buckets without a reportable value (e.g. a ratio whose
		// denominator is zero) are omitted rather than reported as 0.
		v, ok := cur.Value(meta.Type, reducer)
		if !ok {
			return
		}

		points = append(points, Point{
			Start:    time.Unix(0, curStart).UTC(),
			Value:    v,
			Degraded: cur.Degraded,
			Groups:   curGrps,
		})
	}

	for entry, err := range e.store.Read(sid, level, q.Range) {
		if err != nil {
			return nil, err
		}

		if entry.Start != curStart {
			flush()

			curStart = entry.Start
		}

		if !filter.Matches(entry.Mask) {
			continue
		}

		any = true

		cur.Merge(meta.Type, &entry.Agg)

		if q.Breakdown {
			if gv, gok := entry.Agg.Value(meta.Type, reducer); gok {
				curGrps = append(curGrps, Group{
					Tags:     e.codec.Decode(entry.Mask),
					Value:    gv,
					Degraded: entry.Agg.Degraded,
				})
			}
		}
	}

	flush()

	if len(points) == 0 {
		return nil, nil
	}

	return &SeriesResult{
		ID:     sid,
		Tags:   meta.Tags,
		Type:   meta.Type,
		Points: points,
	}, nil
}

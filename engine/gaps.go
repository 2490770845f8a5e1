package engine

import (
	"slices"
	"time"

	"github.com/hupe1980/metrigo/model"
	"github.com/hupe1980/metrigo/series"
)

// span is a half-open nanosecond interval.
type span struct {
	s, e int64
}

// computeGaps reports the sub-ranges of tr that hold no data at the
// requested level. Two causes are covered: the part of the range that
// lies past the level's retention horizon, and (for coarse levels) the
// parts where finer data exists but was never folded into this level.
func (e *Engine) computeGaps(sids []series.ID, level int, tr model.TimeRange, now int64) []model.Gap {
	var gaps []span

	start := tr.Start.UnixNano()
	end := tr.End.UnixNano()

	floor := now - int64(e.cfg.Retention[level])
	if start < floor {
		// Buckets past the horizon may still be present until the next
		// sweep evicts them; a sub-range that was served is not a gap.
		pre := span{s: start, e: min(end, floor)}
		held := e.coverage(sids, level, pre)

		gaps = append(gaps, subtractSpans([]span{pre}, held)...)
	}

	if level > 0 && len(sids) > 0 {
		visible := span{s: max(start, floor), e: end}

		if visible.s < visible.e {
			fine := e.coverage(sids, 0, visible)
			coarse := e.coverage(sids, level, visible)

			gaps = append(gaps, subtractSpans(fine, coarse)...)
		}
	}

	gaps = mergeSpans(gaps)

	out := make([]model.Gap, 0, len(gaps))

	for _, g := range gaps {
		out = append(out, model.Gap{
			Start: time.Unix(0, g.s).UTC(),
			End:   time.Unix(0, g.e).UTC(),
		})
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// coverage returns the merged bucket windows of the given series at a
// level, clipped to v.
func (e *Engine) coverage(sids []series.ID, level int, v span) []span {
	var spans []span

	for _, sid := range sids {
		p := e.store.Partition(sid, level)
		if p == nil {
			continue
		}

		for _, b := range p.Range(p.Align(v.s), v.e) {
			s := span{s: max(b.Start(), v.s), e: min(b.End(), v.e)}
			if s.s < s.e {
				spans = append(spans, s)
			}
		}
	}

	return mergeSpans(spans)
}

// mergeSpans sorts and coalesces overlapping or adjacent spans.
func mergeSpans(spans []span) []span {
	if len(spans) <= 1 {
		return spans
	}

	slices.SortFunc(spans, func(a, b span) int {
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	})

	out := spans[:1]

	for _, s := range spans[1:] {
		last := &out[len(out)-1]

		if s.s <= last.e {
			if s.e > last.e {
				last.e = s.e
			}

			continue
		}

		out = append(out, s)
	}

	return out
}

// subtractSpans returns the parts of a not covered by b.
// Both inputs must be merged and sorted.
func subtractSpans(a, b []span) []span {
	var out []span

	j := 0

	for _, s := range a {
		cur := s

		for j < len(b) && b[j].e <= cur.s {
			j++
		}

		k := j

		for k < len(b) && b[k].s < cur.e {
			if b[k].s > cur.s {
				out = append(out, span{s: cur.s, e: b[k].s})
			}

			if b[k].e > cur.s {
				cur.s = b[k].e
			}

			k++
		}

		if cur.s < cur.e {
			out = append(out, cur)
		}
	}

	return out
}

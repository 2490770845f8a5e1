package tags

import (
	"github.com/hupe1980/metrigo/model"
)

// Filter is a compiled secondary tag predicate.
//
// A zero-mask filter matches every sample regardless of mode, which is how
// "no secondary filter" is represented on the query path.
type Filter struct {
	Mask Mask
	Mode model.FilterMode
}

// Matches reports whether a sample with mask m satisfies the filter.
func (f Filter) Matches(m Mask) bool {
	if f.Mask == 0 {
		return true
	}

	if f.Mode == model.MatchAny {
		return m&f.Mask != 0
	}

	return m&f.Mask == f.Mask
}

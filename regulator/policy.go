package regulator

import (
	"math"

	"github.com/nstehr/vimy/vimy-faction/sample"
)

// PopulationRatio scales a unit regulator's maximum with the faction's
// population cap: floor(ratio × cap), clamped into [min, configured cap].
// The ratio is re-sampled on every consultation.
type PopulationRatio struct {
	Ratio  sample.Range
	Src    *sample.Source
	PopCap func() int
}

func (p PopulationRatio) MaxAmount(min, cap int) int {
	if p.PopCap == nil || (p.Ratio.Min == 0 && p.Ratio.Max == 0) {
		return Demand{}.MaxAmount(min, cap)
	}
	n := int(math.Floor(p.Ratio.Sample(p.Src) * float64(p.PopCap())))
	if n > cap {
		n = cap
	}
	if n < min {
		n = min
	}
	return n
}

// CategoryLedger enforces faction-wide limits per entity category. It
// counts live plus pending instances across every regulator sharing it. A
// nil ledger never limits.
type CategoryLedger struct {
	limits map[string]int
	counts map[string]int
}

func NewCategoryLedger(limits map[string]int) *CategoryLedger {
	l := &CategoryLedger{limits: make(map[string]int), counts: make(map[string]int)}
	for k, v := range limits {
		l.limits[k] = v
	}
	return l
}

// Reached reports whether category is at its limit. Categories without a
// positive limit are unlimited.
func (l *CategoryLedger) Reached(category string) bool {
	if l == nil || category == "" {
		return false
	}
	limit := l.limits[category]
	return limit > 0 && l.counts[category] >= limit
}

// Count returns live plus pending instances of category.
func (l *CategoryLedger) Count(category string) int {
	if l == nil {
		return 0
	}
	return l.counts[category]
}

func (l *CategoryLedger) add(category string, n int) {
	if l == nil || category == "" {
		return
	}
	l.counts[category] += n
	if l.counts[category] < 0 {
		l.counts[category] = 0
	}
}

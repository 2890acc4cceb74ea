// Package sample holds the randomized ranges and countdown timers every
// planner uses. All randomness flows through an injected Source so a match
// can be replayed from a seed.
package sample

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Source is the random number source shared by the planners of one
// faction. It is not safe for concurrent use, matching the single-writer
// tick model.
type Source struct {
	r *rand.Rand
}

// NewSource returns a deterministic source for seed.
func NewSource(seed uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 { return s.r.Float64() }

// IntN returns a value in [0, n). n <= 0 yields 0.
func (s *Source) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

// Between returns a uniform value in [min, max]. Reversed bounds are swapped.
func (s *Source) Between(min, max float64) float64 {
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}
	return min + s.r.Float64()*(max-min)
}

// Weighted picks an index with probability proportional to weights.
// Negative weights count as zero; when nothing carries weight the pick is
// uniform. Returns -1 for an empty slice.
func (s *Source) Weighted(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	w := make([]float64, len(weights))
	for i, v := range weights {
		if v > 0 {
			w[i] = v
		}
	}
	total := floats.Sum(w)
	if total <= 0 {
		return s.IntN(len(w))
	}
	cum := floats.CumSum(make([]float64, len(w)), w)
	target := s.r.Float64() * total
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > target })
	if i >= len(cum) {
		i = len(cum) - 1
	}
	return i
}

// Shuffle randomizes the order of n elements through swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Range is a closed float interval, re-sampled every time it is consulted.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Fixed returns a degenerate range that always samples to v.
func Fixed(v float64) Range { return Range{Min: v, Max: v} }

func (r Range) Sample(src *Source) float64 { return src.Between(r.Min, r.Max) }

// IntRange is a closed integer interval.
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func FixedInt(v int) IntRange { return IntRange{Min: v, Max: v} }

func (r IntRange) Sample(src *Source) int {
	lo, hi := r.Min, r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + src.IntN(hi-lo+1)
}

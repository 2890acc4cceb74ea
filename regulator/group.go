package regulator

import (
	"strings"

	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Group is a named pool of interchangeable regulators, e.g. every unit
// type that can act as a builder.
type Group[T Instance] struct {
	Name    string
	members []*Regulator[T]
	weights []float64
}

func NewGroup[T Instance](name string) *Group[T] {
	return &Group[T]{Name: name}
}

// Add puts reg in the pool with a selection weight.
func (g *Group[T]) Add(reg *Regulator[T], weight float64) {
	for _, m := range g.members {
		if m == reg {
			return
		}
	}
	g.members = append(g.members, reg)
	g.weights = append(g.weights, weight)
}

// Remove drops the member regulating code.
func (g *Group[T]) Remove(code string) {
	for i, m := range g.members {
		if strings.EqualFold(m.Code(), code) {
			g.members = append(g.members[:i], g.members[i+1:]...)
			g.weights = append(g.weights[:i], g.weights[i+1:]...)
			return
		}
	}
}

func (g *Group[T]) Members() []*Regulator[T] { return g.members }

func (g *Group[T]) Len() int { return len(g.members) }

// Contains reports whether a member regulates code.
func (g *Group[T]) Contains(code string) bool {
	for _, m := range g.members {
		if strings.EqualFold(m.Code(), code) {
			return true
		}
	}
	return false
}

// Pick selects one member by weight, uniformly when no member carries
// weight. Returns nil for an empty group.
func (g *Group[T]) Pick(src *sample.Source) *Regulator[T] {
	i := src.Weighted(g.weights)
	if i < 0 {
		return nil
	}
	return g.members[i]
}

// PickAvailable is Pick restricted to members not at their maximum.
func (g *Group[T]) PickAvailable(src *sample.Source) *Regulator[T] {
	var regs []*Regulator[T]
	var weights []float64
	for i, m := range g.members {
		if !m.HasReachedMax() {
			regs = append(regs, m)
			weights = append(weights, g.weights[i])
		}
	}
	i := src.Weighted(weights)
	if i < 0 {
		return nil
	}
	return regs[i]
}

// Instances returns the tracked instances of every member.
func (g *Group[T]) Instances() []T {
	var out []T
	for _, m := range g.members {
		out = append(out, m.Instances()...)
	}
	return out
}

// Count sums the live count of every member.
func (g *Group[T]) Count() int {
	n := 0
	for _, m := range g.members {
		n += m.Current()
	}
	return n
}

// Set is a collection of regulators keyed by code, optionally scoped to a
// territory center. Scope zero is the faction-wide set.
type Set[T Instance] struct {
	Scope model.EntityID
	regs  map[string]*Regulator[T]
	order []string
}

func NewSet[T Instance](scope model.EntityID) *Set[T] {
	return &Set[T]{Scope: scope, regs: make(map[string]*Regulator[T])}
}

// Add inserts reg. A regulator for the same code is replaced.
func (s *Set[T]) Add(reg *Regulator[T]) {
	key := strings.ToLower(reg.Code())
	if _, exists := s.regs[key]; !exists {
		s.order = append(s.order, key)
	}
	s.regs[key] = reg
}

func (s *Set[T]) Get(code string) (*Regulator[T], bool) {
	r, ok := s.regs[strings.ToLower(code)]
	return r, ok
}

// Remove deletes and returns the regulator for code.
func (s *Set[T]) Remove(code string) (*Regulator[T], bool) {
	key := strings.ToLower(code)
	r, ok := s.regs[key]
	if !ok {
		return nil, false
	}
	delete(s.regs, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return r, true
}

// All returns the regulators in insertion order.
func (s *Set[T]) All() []*Regulator[T] {
	out := make([]*Regulator[T], 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.regs[k])
	}
	return out
}

func (s *Set[T]) Len() int { return len(s.order) }

// Release returns every regulator's counts to the category ledger.
func (s *Set[T]) Release() {
	for _, r := range s.regs {
		r.Release()
	}
}

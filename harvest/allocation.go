package harvest

import (
	"math"
	"sort"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Allocation is the gathering plan for one resource type.
type Allocation struct {
	Resource       string
	PerNodeRatio   sample.Range
	MaxTotalRatio  sample.Range
	MinCollectors  int
	MaxActiveNodes int
	// Group names the profile group whose units may collect.
	Group string
	// Collectors is the number of units currently ordered to collect this
	// resource, maintained from collection events.
	Collectors int

	codes  map[string]bool
	active map[model.EntityID]*site
	known  map[model.EntityID]*model.ResourceNode
}

// site is an active node and the units working it.
type site struct {
	node    *model.ResourceNode
	workers map[model.EntityID]bool
}

func newAllocation(cfg profile.ResourceAllocation, p *profile.Profile) *Allocation {
	a := &Allocation{
		Resource:       cfg.Type,
		PerNodeRatio:   cfg.PerNodeRatio,
		MaxTotalRatio:  cfg.MaxTotalRatio,
		MinCollectors:  cfg.MinCollectors,
		MaxActiveNodes: cfg.MaxActiveNodes,
		Group:          cfg.Collectors,
		codes:          make(map[string]bool),
		active:         make(map[model.EntityID]*site),
		known:          make(map[model.EntityID]*model.ResourceNode),
	}
	for _, code := range p.GroupCodes(cfg.Collectors) {
		a.codes[strings.ToLower(code)] = true
	}
	return a
}

// Eligible reports whether a unit type may collect for this allocation.
func (a *Allocation) Eligible(code string) bool { return a.codes[strings.ToLower(code)] }

// canAddCollector is true while the minimum is unmet or the sampled share
// of the eligible population exceeds the current collectors.
func (a *Allocation) canAddCollector(eligible int, src *sample.Source) bool {
	if a.Collectors < a.MinCollectors {
		return true
	}
	return float64(eligible)*a.MaxTotalRatio.Sample(src) > float64(a.Collectors)
}

// targetWorkers samples how many collectors node should have:
// max(1, floor(capacity × ratio)), never above the same formula at the
// ratio's upper bound.
func (a *Allocation) targetWorkers(n *model.ResourceNode, src *sample.Source) int {
	limit := max(1, int(math.Floor(float64(n.Capacity)*a.PerNodeRatio.Max)))
	want := max(1, int(math.Floor(float64(n.Capacity)*a.PerNodeRatio.Sample(src))))
	return min(want, limit)
}

// discover records a node of this resource and activates it when its
// scope has room.
func (a *Allocation) discover(n *model.ResourceNode) bool {
	if !strings.EqualFold(n.Resource, a.Resource) || !n.Exploitable() {
		return false
	}
	a.known[n.ID] = n
	if _, ok := a.active[n.ID]; ok {
		return false
	}
	if a.activeIn(n.Scope) >= a.MaxActiveNodes {
		return false
	}
	a.active[n.ID] = &site{node: n, workers: make(map[model.EntityID]bool)}
	return true
}

func (a *Allocation) activeIn(scope model.EntityID) int {
	n := 0
	for _, s := range a.active {
		if s.node.Scope == scope {
			n++
		}
	}
	return n
}

// deplete drops node and activates a known, inactive node of the same
// scope in its place. It returns the workers that were on the node and
// the substitute, if any.
func (a *Allocation) deplete(id model.EntityID) (released []model.EntityID, substitute *model.ResourceNode) {
	s, ok := a.active[id]
	delete(a.known, id)
	if !ok {
		return nil, nil
	}
	delete(a.active, id)
	for u := range s.workers {
		released = append(released, u)
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	a.Collectors = max(0, a.Collectors-len(released))

	var candidates []*model.ResourceNode
	for _, n := range a.known {
		if _, busy := a.active[n.ID]; !busy && n.Scope == s.node.Scope && n.Exploitable() {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return released, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	sub := candidates[0]
	a.active[sub.ID] = &site{node: sub, workers: make(map[model.EntityID]bool)}
	return released, sub
}

// Active returns the IDs of the active nodes, ascending.
func (a *Allocation) Active() []model.EntityID {
	out := make([]model.EntityID, 0, len(a.active))
	for id := range a.active {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Workers returns how many units are recorded on an active node.
func (a *Allocation) Workers(node model.EntityID) int {
	if s, ok := a.active[node]; ok {
		return len(s.workers)
	}
	return 0
}

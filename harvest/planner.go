// Package harvest allocates gathering units to discovered resource nodes,
// bounded per node and per resource by sampled ratios of the eligible
// population.
package harvest

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/tasks"
)

// Planner is the resource collection planner.
type Planner struct {
	planner.Activation

	ctx    *planner.Context
	log    *slog.Logger
	allocs []*Allocation
	timer  *sample.Timer
	events *event.Group
	// assigned maps each collecting unit to its allocation and node.
	assigned map[model.EntityID]assignment
}

type assignment struct {
	alloc     *Allocation
	node      model.EntityID
	since     float64
	confirmed bool
}

// orderGrace is how long, in game seconds, a collect order may go
// unconfirmed by the game state before its unit is released.
const orderGrace = 5.0

func New() *Planner {
	return &Planner{assigned: make(map[model.EntityID]assignment)}
}

func (p *Planner) Kind() planner.Kind { return planner.KindCollection }

func (p *Planner) Init(ctx *planner.Context) error {
	p.ctx = ctx
	p.log = ctx.Logger(p.Kind())
	p.timer = sample.NewTimer(ctx.Profile.Collection.Interval, ctx.Rand)
	for _, cfg := range ctx.Profile.Collection.Resources {
		p.allocs = append(p.allocs, newAllocation(cfg, ctx.Profile))
	}
	for _, n := range ctx.Directory.ResourceNodes() {
		p.discover(n)
	}
	for _, u := range ctx.Directory.Units(ctx.Faction) {
		if u.Collecting == 0 {
			continue
		}
		if n, ok := ctx.Directory.ResourceNode(u.Collecting); ok {
			p.started(u.ID, n)
		}
	}

	if s, ok := planner.Lookup[*tasks.Scheduler](ctx.Registry, planner.KindTasks); ok {
		s.Register(tasks.KindCollect, tasks.ExecutorFunc(p.execute))
	}

	p.events = event.NewGroup(ctx.Bus)
	p.events.On(event.KindCollectionStarted, func(ev event.Event) {
		e := ev.(event.CollectionStarted)
		if e.Faction == ctx.Faction {
			p.started(e.Unit, e.Node)
		}
	})
	p.events.On(event.KindCollectionStopped, func(ev event.Event) {
		e := ev.(event.CollectionStopped)
		if e.Faction == ctx.Faction {
			p.stopped(e.Unit)
			p.Activate()
		}
	})
	p.events.On(event.KindUnitCreated, func(ev event.Event) {
		if ev.(event.UnitCreated).Unit.Owner == ctx.Faction {
			p.Activate()
		}
	})
	p.events.On(event.KindUnitDestroyed, func(ev event.Event) {
		u := ev.(event.UnitDestroyed).Unit
		if u.Owner == ctx.Faction {
			p.stopped(u.ID)
		}
	})
	p.events.On(event.KindUnitConverted, func(ev event.Event) {
		e := ev.(event.UnitConverted)
		if e.From == ctx.Faction {
			p.stopped(e.Unit.ID)
		}
	})
	p.events.On(event.KindResourceNodeDiscovered, func(ev event.Event) {
		e := ev.(event.ResourceNodeDiscovered)
		if e.Faction == ctx.Faction && p.discover(e.Node) {
			p.Activate()
		}
	})
	p.events.On(event.KindResourceNodeDepleted, func(ev event.Event) {
		p.depleted(ev.(event.ResourceNodeDepleted).Node)
	})

	p.Activate()
	return nil
}

func (p *Planner) Close() {
	if p.events != nil {
		p.events.Close()
	}
}

// Allocation returns the plan for resource.
func (p *Planner) Allocation(resource string) (*Allocation, bool) {
	for _, a := range p.allocs {
		if strings.EqualFold(a.Resource, resource) {
			return a, true
		}
	}
	return nil, false
}

func (p *Planner) discover(n *model.ResourceNode) bool {
	activated := false
	for _, a := range p.allocs {
		if a.discover(n) {
			activated = true
		}
	}
	return activated
}

func (p *Planner) started(unit model.EntityID, n *model.ResourceNode) {
	if n == nil {
		return
	}
	a, ok := p.Allocation(n.Resource)
	if !ok {
		return
	}
	if prev, ok := p.assigned[unit]; ok {
		if prev.alloc == a && prev.node == n.ID {
			return
		}
		p.stopped(unit)
	}
	if s, ok := a.active[n.ID]; ok {
		s.workers[unit] = true
	}
	a.Collectors++
	p.assigned[unit] = assignment{alloc: a, node: n.ID, since: p.ctx.Directory.Elapsed()}
}

func (p *Planner) stopped(unit model.EntityID) {
	as, ok := p.assigned[unit]
	if !ok {
		return
	}
	delete(p.assigned, unit)
	if s, ok := as.alloc.active[as.node]; ok {
		delete(s.workers, unit)
	}
	as.alloc.Collectors = max(0, as.alloc.Collectors-1)
}

func (p *Planner) depleted(n *model.ResourceNode) {
	a, ok := p.Allocation(n.Resource)
	if !ok {
		return
	}
	released, sub := a.deplete(n.ID)
	for _, u := range released {
		delete(p.assigned, u)
	}
	if sub != nil {
		p.log.Debug("node substituted", "depleted", n.ID, "substitute", sub.ID, "resource", a.Resource)
	}
	p.Activate()
}

// eligible counts the units that may collect for a. The unit creator's
// regulators are the event-maintained count; without one the directory
// is scanned.
func (p *Planner) eligible(a *Allocation) int {
	if uc, ok := planner.Lookup[*production.UnitCreator](p.ctx.Registry, planner.KindUnitCreator); ok {
		return uc.Group(a.Group).Count()
	}
	n := 0
	for _, u := range p.ctx.Directory.Units(p.ctx.Faction) {
		if a.Eligible(u.Type) {
			n++
		}
	}
	return n
}

func (p *Planner) Tick(dt float64) {
	if !p.timer.Tick(dt) {
		return
	}
	work := p.reconcile()
	for _, a := range p.allocs {
		for _, id := range a.Active() {
			if !a.canAddCollector(p.eligible(a), p.ctx.Rand) {
				break
			}
			s := a.active[id]
			need := a.targetWorkers(s.node, p.ctx.Rand) - len(s.workers)
			if need <= 0 {
				continue
			}
			work = true
			got := p.assign(a, s, need, false)
			if got < need && !p.queued(id) {
				p.submit(a, id)
			}
		}
	}
	if !work {
		p.Deactivate()
	}
}

// reconcile releases units whose collect order the game dropped: still
// empty-handed orderGrace after the order. Once the game shows a unit on
// its node, collection events take over. Reports whether orders are
// still awaiting confirmation.
func (p *Planner) reconcile() bool {
	now := p.ctx.Directory.Elapsed()
	waiting := false
	for id, as := range p.assigned {
		if as.confirmed {
			continue
		}
		u, ok := p.ctx.Directory.Unit(id)
		switch {
		case !ok, u.Collecting != 0 && u.Collecting != as.node:
		case u.Collecting == as.node:
			as.confirmed = true
			p.assigned[id] = as
		case now-as.since >= orderGrace:
			p.log.Debug("collect order dropped", "unit", id, "node", as.node)
			p.stopped(id)
		default:
			waiting = true
		}
	}
	return waiting
}

// AddCollectors orders up to n more units onto node, or onto the active
// node of resource lacking the most workers when node is zero. forced
// lets busy units be pulled off their current work. Returns how many
// units were ordered.
func (p *Planner) AddCollectors(resource string, node model.EntityID, n int, forced bool) int {
	a, ok := p.Allocation(resource)
	if !ok || n <= 0 {
		return 0
	}
	if node == 0 {
		node = p.neediest(a)
	}
	s, ok := a.active[node]
	if !ok {
		return 0
	}
	return p.assign(a, s, n, forced)
}

func (p *Planner) neediest(a *Allocation) model.EntityID {
	var best model.EntityID
	bestGap := -1
	for _, id := range a.Active() {
		s := a.active[id]
		if gap := s.node.Capacity - len(s.workers); gap > bestGap {
			best, bestGap = id, gap
		}
	}
	return best
}

// assign orders up to n eligible units to collect at s, nearest first.
// Idle units go first; busy ones only when forced.
func (p *Planner) assign(a *Allocation, s *site, n int, forced bool) int {
	var idle, busy []*model.Unit
	for _, u := range p.ctx.Directory.Units(p.ctx.Faction) {
		if !a.Eligible(u.Type) || s.workers[u.ID] {
			continue
		}
		if _, collecting := p.assigned[u.ID]; u.Idle && !collecting {
			idle = append(idle, u)
		} else {
			busy = append(busy, u)
		}
	}
	byDistance := func(list []*model.Unit) {
		pos := s.node.Pos()
		sort.SliceStable(list, func(i, j int) bool {
			return p.ctx.Geometry.Distance(list[i].Pos(), pos) < p.ctx.Geometry.Distance(list[j].Pos(), pos)
		})
	}
	byDistance(idle)
	candidates := idle
	if forced {
		byDistance(busy)
		candidates = append(candidates, busy...)
	}

	ordered := 0
	for _, u := range candidates {
		if ordered >= n {
			break
		}
		if !p.ctx.Orders.Collect(u.ID, s.node.ID) {
			continue
		}
		if !u.Idle {
			p.ctx.Bus.Publish(event.UnitReassigned{Faction: p.ctx.Faction, UnitID: u.ID, By: string(p.Kind())})
		}
		p.ctx.Bus.Publish(event.CollectionStarted{Faction: p.ctx.Faction, Unit: u.ID, Node: s.node})
		ordered++
	}
	if ordered > 0 {
		p.log.Debug("collectors assigned", "resource", a.Resource, "node", s.node.ID, "count", ordered, "forced", forced)
	}
	return ordered
}

func (p *Planner) queued(node model.EntityID) bool {
	s, ok := planner.Lookup[*tasks.Scheduler](p.ctx.Registry, planner.KindTasks)
	return ok && s.Contains(tasks.KindCollect, node)
}

// submit defers a shortfall to the task scheduler at the lowest priority;
// the forced drain may then pull busy units.
func (p *Planner) submit(a *Allocation, node model.EntityID) {
	s, ok := planner.Lookup[*tasks.Scheduler](p.ctx.Registry, planner.KindTasks)
	if !ok {
		return
	}
	s.AddTask(tasks.Entry{Kind: tasks.KindCollect, Target: node, Resource: a.Resource}, s.Levels()-1)
}

// execute runs a queued collection task.
func (p *Planner) execute(e tasks.Entry, forced bool) tasks.Result {
	a, ok := p.Allocation(e.Resource)
	if !ok {
		return tasks.ResultStale
	}
	s, ok := a.active[e.Target]
	if !ok || !s.node.Exploitable() {
		return tasks.ResultStale
	}
	need := a.targetWorkers(s.node, p.ctx.Rand) - len(s.workers)
	if need <= 0 {
		return tasks.ResultStale
	}
	if p.assign(a, s, need, forced) == 0 {
		return tasks.ResultFailed
	}
	return tasks.ResultDone
}

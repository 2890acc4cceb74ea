package economy

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/tasks"
)

type site struct {
	building *model.Building
	builders map[model.EntityID]bool
	want     int
	repair   bool
}

// Construction keeps crews on construction sites and, when repair is
// enabled, on damaged buildings.
type Construction struct {
	planner.Activation

	ctx    *planner.Context
	log    *slog.Logger
	cfg    profile.ConstructionConfig
	codes  map[string]bool
	sites  map[model.EntityID]*site
	timer  *sample.Timer
	events *event.Group
}

func NewConstruction() *Construction {
	return &Construction{sites: make(map[model.EntityID]*site), codes: make(map[string]bool)}
}

func (c *Construction) Kind() planner.Kind { return planner.KindConstruction }

func (c *Construction) Init(ctx *planner.Context) error {
	c.ctx = ctx
	c.log = ctx.Logger(c.Kind())
	c.cfg = ctx.Profile.Construction
	c.timer = sample.NewTimer(c.cfg.Interval, ctx.Rand)
	for _, code := range ctx.Profile.GroupCodes(c.cfg.Group) {
		c.codes[strings.ToLower(code)] = true
	}
	for _, b := range ctx.Directory.Buildings(ctx.Faction) {
		switch {
		case !b.Built:
			c.track(b, false)
		case c.cfg.Repair && b.Damaged():
			c.track(b, true)
		}
	}

	if s, ok := planner.Lookup[*tasks.Scheduler](ctx.Registry, planner.KindTasks); ok {
		s.Register(tasks.KindConstruct, tasks.ExecutorFunc(c.execute))
	}

	c.events = event.NewGroup(ctx.Bus)
	c.events.On(event.KindBuildingPlaced, func(ev event.Event) {
		if b := ev.(event.BuildingPlaced).Building; b.Owner == ctx.Faction {
			c.track(b, false)
		}
	})
	c.events.On(event.KindBuildingDamaged, func(ev event.Event) {
		if b := ev.(event.BuildingDamaged).Building; c.cfg.Repair && b.Owner == ctx.Faction && b.Built {
			c.track(b, true)
		}
	})
	c.events.On(event.KindBuildingBuilt, func(ev event.Event) {
		b := ev.(event.BuildingBuilt).Building
		if s, ok := c.sites[b.ID]; ok && (!s.repair || !b.Damaged()) {
			c.untrack(b.ID)
		}
	})
	c.events.On(event.KindBuildingDestroyed, func(ev event.Event) {
		c.untrack(ev.(event.BuildingDestroyed).Building.ID)
	})
	c.events.On(event.KindBuildingConverted, func(ev event.Event) {
		if e := ev.(event.BuildingConverted); e.From == ctx.Faction {
			c.untrack(e.Building.ID)
		}
	})
	c.events.On(event.KindConstructionStarted, func(ev event.Event) {
		e := ev.(event.ConstructionStarted)
		if s, ok := c.sites[e.Building.ID]; ok {
			s.builders[e.Builder] = true
		}
	})
	c.events.On(event.KindConstructionStopped, func(ev event.Event) {
		e := ev.(event.ConstructionStopped)
		if s, ok := c.sites[e.Building.ID]; ok {
			delete(s.builders, e.Builder)
			c.Activate()
		}
	})
	c.events.On(event.KindUnitDestroyed, func(ev event.Event) {
		c.release(ev.(event.UnitDestroyed).Unit.ID)
	})
	c.events.On(event.KindUnitReassigned, func(ev event.Event) {
		if e := ev.(event.UnitReassigned); e.Faction == ctx.Faction && e.By != string(c.Kind()) {
			c.release(e.UnitID)
		}
	})

	if len(c.sites) > 0 {
		c.Activate()
	}
	return nil
}

func (c *Construction) Close() {
	if c.events != nil {
		c.events.Close()
	}
}

func (c *Construction) track(b *model.Building, repair bool) {
	if _, ok := c.sites[b.ID]; ok {
		return
	}
	s := &site{
		building: b,
		builders: make(map[model.EntityID]bool),
		want:     max(1, c.cfg.Builders.Sample(c.ctx.Rand)),
		repair:   repair,
	}
	for _, u := range c.ctx.Directory.Builders(b.ID) {
		if u.Owner == c.ctx.Faction {
			s.builders[u.ID] = true
		}
	}
	c.sites[b.ID] = s
	c.log.Debug("site tracked", "building", b.ID, "type", b.Type, "repair", repair, "builders", s.want)
	c.Activate()
}

func (c *Construction) untrack(id model.EntityID) {
	if _, ok := c.sites[id]; ok {
		delete(c.sites, id)
		c.log.Debug("site finished", "building", id)
	}
}

func (c *Construction) release(unit model.EntityID) {
	for _, s := range c.sites {
		if s.builders[unit] {
			delete(s.builders, unit)
			c.Activate()
		}
	}
}

// Sites lists the tracked building IDs in ascending order.
func (c *Construction) Sites() []model.EntityID {
	out := make([]model.EntityID, 0, len(c.sites))
	for id := range c.sites {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Builders returns how many builders are counted on a site.
func (c *Construction) Builders(building model.EntityID) int {
	if s, ok := c.sites[building]; ok {
		return len(s.builders)
	}
	return 0
}

func (c *Construction) Tick(dt float64) {
	if !c.timer.Tick(dt) {
		return
	}
	for _, id := range c.Sites() {
		s := c.sites[id]
		if c.finished(s) {
			c.untrack(id)
			continue
		}
		need := s.want - len(s.builders)
		if need <= 0 {
			continue
		}
		if got := c.assign(s, need, false); got < need && !c.queued(id) {
			c.submit(id)
		}
	}
	if len(c.sites) == 0 {
		c.Deactivate()
	}
}

// finished reports whether the directory no longer shows work on s.
func (c *Construction) finished(s *site) bool {
	b, ok := c.ctx.Directory.Building(s.building.ID)
	if !ok || b.Owner != c.ctx.Faction {
		return true
	}
	s.building = b
	if s.repair {
		return !b.Damaged()
	}
	return b.Built
}

// assign orders up to n builders onto s, nearest first. Busy builders are
// taken only when forced.
func (c *Construction) assign(s *site, n int, forced bool) int {
	busyElsewhere := make(map[model.EntityID]bool)
	for _, other := range c.sites {
		for u := range other.builders {
			busyElsewhere[u] = true
		}
	}
	var idle, busy []*model.Unit
	for _, u := range c.ctx.Directory.Units(c.ctx.Faction) {
		if !c.codes[strings.ToLower(u.Type)] || s.builders[u.ID] {
			continue
		}
		if u.Idle && u.Building == 0 && !busyElsewhere[u.ID] {
			idle = append(idle, u)
		} else {
			busy = append(busy, u)
		}
	}
	pos := s.building.Pos()
	nearest := func(list []*model.Unit) {
		sort.SliceStable(list, func(i, j int) bool {
			return c.ctx.Geometry.Distance(list[i].Pos(), pos) < c.ctx.Geometry.Distance(list[j].Pos(), pos)
		})
	}
	nearest(idle)
	candidates := idle
	if forced {
		nearest(busy)
		candidates = append(candidates, busy...)
	}

	ordered := 0
	for _, u := range candidates {
		if ordered >= n {
			break
		}
		if !c.ctx.Orders.Construct(u.ID, s.building.ID) {
			continue
		}
		if !u.Idle || busyElsewhere[u.ID] {
			c.release(u.ID)
			c.ctx.Bus.Publish(event.UnitReassigned{Faction: c.ctx.Faction, UnitID: u.ID, By: string(c.Kind())})
		}
		c.ctx.Bus.Publish(event.ConstructionStarted{Building: s.building, Builder: u.ID})
		ordered++
	}
	if ordered > 0 {
		c.log.Debug("builders assigned", "building", s.building.ID, "count", ordered, "forced", forced)
	}
	return ordered
}

func (c *Construction) queued(building model.EntityID) bool {
	s, ok := planner.Lookup[*tasks.Scheduler](c.ctx.Registry, planner.KindTasks)
	return ok && s.Contains(tasks.KindConstruct, building)
}

func (c *Construction) submit(building model.EntityID) {
	if s, ok := planner.Lookup[*tasks.Scheduler](c.ctx.Registry, planner.KindTasks); ok {
		s.AddTask(tasks.Entry{Kind: tasks.KindConstruct, Target: building}, c.cfg.Priority)
	}
}

// execute runs a queued construction task.
func (c *Construction) execute(e tasks.Entry, forced bool) tasks.Result {
	s, ok := c.sites[e.Target]
	if !ok || c.finished(s) {
		c.untrack(e.Target)
		return tasks.ResultStale
	}
	need := s.want - len(s.builders)
	if need <= 0 {
		return tasks.ResultStale
	}
	if c.assign(s, need, forced) == 0 {
		return tasks.ResultFailed
	}
	return tasks.ResultDone
}

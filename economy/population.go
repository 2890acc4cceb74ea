// Package economy holds the smaller planners that keep a faction growing:
// housing, territorial expansion, upgrades, construction crews and the
// home defense reflex.
package economy

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Population raises the housing targets when free population slots run
// low.
type Population struct {
	planner.Activation

	ctx    *planner.Context
	log    *slog.Logger
	cfg    profile.PopulationConfig
	timer  *sample.Timer
	events *event.Group
}

func NewPopulation() *Population { return &Population{} }

func (p *Population) Kind() planner.Kind { return planner.KindPopulation }

func (p *Population) Init(ctx *planner.Context) error {
	p.ctx = ctx
	p.log = ctx.Logger(p.Kind())
	p.cfg = ctx.Profile.Population
	p.timer = sample.NewTimer(p.cfg.Interval, ctx.Rand)
	if p.cfg.Housing == "" {
		return nil
	}
	p.events = event.NewGroup(ctx.Bus)
	p.events.On(event.KindPopulationChanged, func(ev event.Event) {
		if ev.(event.PopulationChanged).Faction == ctx.Faction {
			p.Activate()
		}
	})
	p.Activate()
	return nil
}

func (p *Population) Close() {
	if p.events != nil {
		p.events.Close()
	}
}

func (p *Population) Tick(dt float64) {
	if !p.timer.Tick(dt) {
		return
	}
	if !p.Check() {
		p.Deactivate()
	}
}

// Check compares free slots against a fresh threshold and, when short,
// asks for one more housing building. Reports whether the faction is
// still short of housing.
func (p *Population) Check() bool {
	f, ok := p.ctx.Self()
	if !ok {
		return false
	}
	free := f.PopulationCap - f.Population
	threshold := p.cfg.FreeSlots.Sample(p.ctx.Rand)
	if free >= threshold {
		return false
	}
	bc, ok := planner.Lookup[*production.BuildingCreator](p.ctx.Registry, planner.KindBuildingCreator)
	if !ok {
		return false
	}
	housing := bc.Group(p.cfg.Housing, bc.Capital())
	for _, reg := range housing.Members() {
		if reg.Pending() > 0 || !reg.HasReachedMin() {
			// A raised target is still being met.
			return true
		}
	}
	reg := housing.PickAvailable(p.ctx.Rand)
	if reg == nil {
		p.log.Debug("no housing available", "free", free, "threshold", threshold)
		return true
	}
	if reg.Min() < reg.Current() {
		reg.SetMin(reg.Current())
	}
	reg.IncrementMinTarget()
	bc.Activate()
	p.log.Debug("housing target raised", "code", reg.Code(), "min", reg.Min(), "free", free, "threshold", threshold)
	return true
}

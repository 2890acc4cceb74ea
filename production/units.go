package production

import (
	"log/slog"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/world"
)

// UnitCreator maintains the unscoped unit regulators of a faction.
type UnitCreator struct {
	planner.Activation

	ctx    *planner.Context
	log    *slog.Logger
	ledger *regulator.CategoryLedger
	set    *regulator.Set[*model.Unit]
	slots  map[string]*slot[*model.Unit]
	events *event.Group
	popCap int
}

// NewUnitCreator returns a creator sharing ledger with the faction's other
// regulators.
func NewUnitCreator(ledger *regulator.CategoryLedger) *UnitCreator {
	return &UnitCreator{ledger: ledger, slots: make(map[string]*slot[*model.Unit])}
}

func (c *UnitCreator) Kind() planner.Kind { return planner.KindUnitCreator }

func (c *UnitCreator) Init(ctx *planner.Context) error {
	c.ctx = ctx
	c.log = ctx.Logger(c.Kind())
	c.set = regulator.NewSet[*model.Unit](0)
	if f, ok := ctx.Self(); ok {
		c.popCap = f.PopulationCap
	}

	env := regulator.Env{
		Profile: ctx.Profile,
		Src:     ctx.Rand,
		Ledger:  c.ledger,
		Owner:   c,
		PopCap:  func() int { return c.popCap },
	}
	for _, cfg := range ctx.Profile.Units {
		reg, err := regulator.NewUnitRegulator(env, cfg)
		if err != nil {
			return err
		}
		ent, _ := ctx.Profile.Entity(cfg.Code)
		c.set.Add(reg)
		c.slots[strings.ToLower(reg.Code())] = newSlot(reg, cfg, ent, ctx.Rand)
	}
	for _, u := range ctx.Directory.Units(ctx.Faction) {
		if reg, ok := c.set.Get(u.Type); ok {
			reg.AddExisting(u)
		}
	}

	c.events = event.NewGroup(ctx.Bus)
	c.events.On(event.KindUnitCreated, c.onCreated)
	c.events.On(event.KindUnitDestroyed, c.onDestroyed)
	c.events.On(event.KindUnitConverted, c.onConverted)
	c.events.On(event.KindProductionCancelled, c.onCancelled)
	c.events.On(event.KindPopulationChanged, c.onPopulation)

	c.log.Info("unit regulators ready", "count", c.set.Len())
	c.Activate()
	return nil
}

func (c *UnitCreator) Close() {
	if c.events != nil {
		c.events.Close()
	}
}

func (c *UnitCreator) Tick(dt float64) {
	busy := false
	for _, reg := range c.set.All() {
		s := c.slots[strings.ToLower(reg.Code())]
		if !s.waiting() {
			continue
		}
		busy = true
		if reg.HasReachedMax() || !s.cooldown.Tick(dt) {
			continue
		}
		out := c.attempt(s)
		c.log.Debug("production attempt", "code", reg.Code(), "outcome", out.String(),
			"current", reg.Current(), "pending", reg.Pending(), "min", reg.Min())
	}
	if !busy {
		c.Deactivate()
	}
}

func (c *UnitCreator) attempt(s *slot[*model.Unit]) world.Outcome {
	if s.reg.HasReachedMax() {
		return world.OutcomeAtMaximum
	}
	if !affordable(c.ctx, s.entity) {
		return world.OutcomeInsufficientResources
	}
	if !prerequisites(c.ctx, s.entity, c.log) {
		return world.OutcomeRequirementsUnmet
	}
	out := c.ctx.Production.Produce(c.ctx.Faction, s.reg.Code(), world.PlacementHint{})
	if out != world.OutcomeAccepted {
		return out
	}
	accepted(c.ctx, s)
	c.ctx.Bus.Publish(event.ProductionRequested{Faction: c.ctx.Faction, Code: s.reg.Code()})
	return out
}

// RequestProduction asks for one unit of code now. A forced request skips
// the minimum and the cooldown; no request ever exceeds the maximum.
func (c *UnitCreator) RequestProduction(code string, forced bool) world.Outcome {
	s, ok := c.slots[strings.ToLower(code)]
	if !ok {
		return world.OutcomeUnknownEntity
	}
	if !forced {
		if s.reg.HasReachedMin() {
			return world.OutcomeSatisfied
		}
		if !s.cooldown.Tick(0) {
			return world.OutcomeCooldown
		}
	}
	return c.attempt(s)
}

// QueryTargetCount returns the effective supply target for code.
func (c *UnitCreator) QueryTargetCount(code string) int {
	reg, ok := c.set.Get(code)
	if !ok {
		return 0
	}
	return reg.Max()
}

// Regulator returns the regulator for code.
func (c *UnitCreator) Regulator(code string) (*regulator.UnitRegulator, bool) {
	return c.set.Get(code)
}

// Group assembles the named profile group from this creator's regulators.
// Codes without a unit regulator are skipped.
func (c *UnitCreator) Group(name string) *regulator.Group[*model.Unit] {
	g := regulator.NewGroup[*model.Unit](name)
	for _, m := range c.ctx.Profile.Group(name) {
		if reg, ok := c.set.Get(m.Code); ok {
			g.Add(reg, m.Weight)
		}
	}
	return g
}

func (c *UnitCreator) onCreated(ev event.Event) {
	e := ev.(event.UnitCreated)
	if e.Unit.Owner != c.ctx.Faction {
		return
	}
	if reg, ok := c.set.Get(e.Unit.Type); ok {
		reg.Commit(e.Unit)
	}
}

func (c *UnitCreator) onDestroyed(ev event.Event) {
	e := ev.(event.UnitDestroyed)
	if e.Unit.Owner != c.ctx.Faction {
		return
	}
	if reg, ok := c.set.Get(e.Unit.Type); ok && reg.Tracks(e.Unit.ID) {
		reg.Remove(e.Unit)
	}
}

func (c *UnitCreator) onConverted(ev event.Event) {
	e := ev.(event.UnitConverted)
	reg, ok := c.set.Get(e.Unit.Type)
	if !ok {
		return
	}
	switch {
	case e.Unit.Owner == c.ctx.Faction:
		reg.AddExisting(e.Unit)
	case e.From == c.ctx.Faction && reg.Tracks(e.Unit.ID):
		reg.Remove(e.Unit)
	}
}

func (c *UnitCreator) onCancelled(ev event.Event) {
	e := ev.(event.ProductionCancelled)
	if e.Faction != c.ctx.Faction {
		return
	}
	if reg, ok := c.set.Get(e.Code); ok {
		reg.CancelPending()
	}
}

func (c *UnitCreator) onPopulation(ev event.Event) {
	e := ev.(event.PopulationChanged)
	if e.Faction != c.ctx.Faction || e.Cap == c.popCap {
		return
	}
	c.popCap = e.Cap
	c.Activate()
}

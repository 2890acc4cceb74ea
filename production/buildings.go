package production

import (
	"log/slog"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/world"
)

// scope is the building regulator set of one territory center. The
// capital's center may be nil until the faction owns one.
type scope struct {
	center *model.Building
	set    *regulator.Set[*model.Building]
	slots  map[string]*slot[*model.Building]
}

func (s *scope) id() model.EntityID {
	if s.center == nil {
		return 0
	}
	return s.center.ID
}

// BuildingCreator maintains one building regulator set per territory
// center. The first scope is the capital; center buildings are regulated
// there only, so expansion is always capital-driven.
type BuildingCreator struct {
	planner.Activation

	ctx    *planner.Context
	log    *slog.Logger
	ledger *regulator.CategoryLedger
	scopes []*scope // scopes[0] is the capital
	events *event.Group
}

func NewBuildingCreator(ledger *regulator.CategoryLedger) *BuildingCreator {
	return &BuildingCreator{ledger: ledger}
}

func (c *BuildingCreator) Kind() planner.Kind { return planner.KindBuildingCreator }

func (c *BuildingCreator) Init(ctx *planner.Context) error {
	c.ctx = ctx
	c.log = ctx.Logger(c.Kind())

	owned := ctx.Directory.Buildings(ctx.Faction)
	var centers []*model.Building
	for _, b := range owned {
		if c.isCenter(b.Type) && b.Built {
			centers = append(centers, b)
		}
	}
	var capitalCenter *model.Building
	if len(centers) > 0 {
		capitalCenter = centers[0]
	}
	if _, err := c.addScope(capitalCenter, true); err != nil {
		return err
	}
	for _, b := range centers[min(1, len(centers)):] {
		if _, err := c.addScope(b, false); err != nil {
			return err
		}
	}
	for _, b := range owned {
		if s := c.route(b); s != nil {
			if reg, ok := s.set.Get(b.Type); ok {
				reg.AddExisting(b)
			}
		}
	}

	c.events = event.NewGroup(ctx.Bus)
	c.events.On(event.KindBuildingPlaced, c.onPlaced)
	c.events.On(event.KindBuildingBuilt, c.onBuilt)
	c.events.On(event.KindBuildingDestroyed, c.onDestroyed)
	c.events.On(event.KindBuildingConverted, c.onConverted)
	c.events.On(event.KindBuildingUpgraded, c.onUpgraded)
	c.events.On(event.KindProductionCancelled, c.onCancelled)

	c.log.Info("building scopes ready", "scopes", len(c.scopes), "capital", c.scopes[0].id())
	c.Activate()
	return nil
}

func (c *BuildingCreator) Close() {
	if c.events != nil {
		c.events.Close()
	}
	for _, s := range c.scopes {
		s.set.Release()
	}
}

func (c *BuildingCreator) isCenter(code string) bool {
	ent, ok := c.ctx.Profile.Entity(code)
	return ok && ent.Center
}

// addScope builds the regulator set for a center. Only the capital
// regulates center buildings.
func (c *BuildingCreator) addScope(center *model.Building, capital bool) (*scope, error) {
	s := &scope{center: center, slots: make(map[string]*slot[*model.Building])}
	s.set = regulator.NewSet[*model.Building](s.id())
	for _, cfg := range c.ctx.Profile.Buildings {
		if c.isCenter(cfg.Code) && !capital {
			continue
		}
		if err := c.addRegulator(s, cfg, 0); err != nil {
			return nil, err
		}
	}
	if capital {
		c.scopes = append([]*scope{s}, c.scopes...)
	} else {
		c.scopes = append(c.scopes, s)
	}
	return s, nil
}

func (c *BuildingCreator) addRegulator(s *scope, cfg profile.RegulatorConfig, minFloor int) error {
	env := regulator.Env{Profile: c.ctx.Profile, Src: c.ctx.Rand, Ledger: c.ledger, Owner: c}
	reg, err := regulator.NewBuildingRegulator(env, cfg, nil)
	if err != nil {
		return err
	}
	if reg.Min() < minFloor {
		reg.SetMin(minFloor)
	}
	ent, _ := c.ctx.Profile.Entity(cfg.Code)
	s.set.Add(reg)
	s.slots[strings.ToLower(reg.Code())] = newSlot(reg, cfg, ent, c.ctx.Rand)
	return nil
}

// route returns the scope a building belongs to, falling back to the
// capital for buildings outside every known territory.
func (c *BuildingCreator) route(b *model.Building) *scope {
	if len(c.scopes) == 0 {
		return nil
	}
	if b.Scope != 0 {
		for _, s := range c.scopes {
			if s.id() == b.Scope {
				return s
			}
		}
	}
	return c.scopes[0]
}

// tracking returns the scope whose regulator counts b.
func (c *BuildingCreator) tracking(b *model.Building) (*scope, *regulator.BuildingRegulator) {
	for _, s := range c.scopes {
		if reg, ok := s.set.Get(b.Type); ok && reg.Tracks(b.ID) {
			return s, reg
		}
	}
	return nil, nil
}

func (c *BuildingCreator) scopeByID(id model.EntityID) *scope {
	for _, s := range c.scopes {
		if s.id() == id {
			return s
		}
	}
	return nil
}

func (c *BuildingCreator) Tick(dt float64) {
	busy := false
	for _, s := range c.scopes {
		for _, reg := range s.set.All() {
			sl := s.slots[strings.ToLower(reg.Code())]
			if !sl.waiting() {
				continue
			}
			busy = true
			if reg.HasReachedMax() || !sl.cooldown.Tick(dt) {
				continue
			}
			out := c.attempt(s, sl, nil)
			c.log.Debug("production attempt", "code", reg.Code(), "scope", s.id(), "outcome", out.String(),
				"current", reg.Current(), "pending", reg.Pending(), "min", reg.Min())
		}
	}
	if !busy {
		c.Deactivate()
	}
}

// attempt places one building of the slot's code. A nil at uses the
// configured placement strategy.
func (c *BuildingCreator) attempt(s *scope, sl *slot[*model.Building], at *world.Anchor) world.Outcome {
	if sl.reg.HasReachedMax() {
		return world.OutcomeAtMaximum
	}
	if !affordable(c.ctx, sl.entity) {
		return world.OutcomeInsufficientResources
	}
	if !prerequisites(c.ctx, sl.entity, c.log) {
		return world.OutcomeRequirementsUnmet
	}
	var anchor world.Anchor
	if at != nil {
		anchor = *at
	} else {
		var ok bool
		if anchor, ok = c.anchor(s, sl.cfg.Placement); !ok {
			return world.OutcomeNoPlacement
		}
	}
	pos, ok := c.ctx.Placement.FindPlacement(sl.reg.Code(), s.id(), anchor)
	if !ok {
		return world.OutcomeNoPlacement
	}
	hint := world.PlacementHint{Scope: s.id(), Position: pos, HasSpot: true}
	out := c.ctx.Production.Produce(c.ctx.Faction, sl.reg.Code(), hint)
	if out != world.OutcomeAccepted {
		return out
	}
	accepted(c.ctx, sl)
	c.ctx.Bus.Publish(event.ProductionRequested{Faction: c.ctx.Faction, Code: sl.reg.Code(), Scope: s.id()})
	return out
}

// anchor picks where to place around, uniformly among eligible anchors of
// the configured strategy.
func (c *BuildingCreator) anchor(s *scope, p profile.Placement) (world.Anchor, bool) {
	var candidates []world.Anchor
	switch p.Strategy {
	case profile.AnchorResource:
		for _, n := range c.ctx.Directory.ResourceNodes() {
			if n.Exploitable() && strings.EqualFold(n.Resource, p.Target) && (s.id() == 0 || n.Scope == s.id()) {
				candidates = append(candidates, world.Anchor{Strategy: p.Strategy, Ref: n.ID, Position: n.Pos()})
			}
		}
	case profile.AnchorBuilding:
		for _, b := range c.ctx.Directory.Buildings(c.ctx.Faction) {
			if b.Built && strings.EqualFold(b.Type, p.Target) && c.route(b) == s {
				candidates = append(candidates, world.Anchor{Strategy: p.Strategy, Ref: b.ID, Position: b.Pos()})
			}
		}
	default:
		if s.center != nil {
			candidates = append(candidates, world.Anchor{Strategy: profile.AnchorCenter, Ref: s.center.ID, Position: s.center.Pos()})
		}
	}
	if len(candidates) == 0 {
		return world.Anchor{}, false
	}
	return candidates[c.ctx.Rand.IntN(len(candidates))], true
}

// RequestProduction asks for one building of code in any scope with free
// capacity, capital first.
func (c *BuildingCreator) RequestProduction(code string, forced bool) world.Outcome {
	result := world.OutcomeUnknownEntity
	for _, s := range c.scopes {
		out := c.requestIn(s, code, forced, nil)
		if out == world.OutcomeAccepted {
			return out
		}
		if out != world.OutcomeUnknownEntity {
			result = out
		}
	}
	return result
}

// RequestProductionIn is RequestProduction restricted to one scope.
func (c *BuildingCreator) RequestProductionIn(scopeID model.EntityID, code string, forced bool) world.Outcome {
	s := c.scopeByID(scopeID)
	if s == nil {
		return world.OutcomeNoPlacement
	}
	return c.requestIn(s, code, forced, nil)
}

// RequestProductionAt asks the capital for one building of code placed
// around anchor instead of the configured strategy.
func (c *BuildingCreator) RequestProductionAt(code string, anchor world.Anchor, forced bool) world.Outcome {
	return c.requestIn(c.scopes[0], code, forced, &anchor)
}

func (c *BuildingCreator) requestIn(s *scope, code string, forced bool, at *world.Anchor) world.Outcome {
	sl, ok := s.slots[strings.ToLower(code)]
	if !ok {
		return world.OutcomeUnknownEntity
	}
	if sl.reg.HasReachedMax() {
		return world.OutcomeAtMaximum
	}
	if !forced {
		if sl.reg.HasReachedMin() {
			return world.OutcomeSatisfied
		}
		if !sl.cooldown.Tick(0) {
			return world.OutcomeCooldown
		}
	}
	return c.attempt(s, sl, at)
}

// QueryTargetCount sums the effective target for code over every scope.
func (c *BuildingCreator) QueryTargetCount(code string) int {
	n := 0
	for _, s := range c.scopes {
		if reg, ok := s.set.Get(code); ok {
			n += reg.Max()
		}
	}
	return n
}

// Capital returns the capital scope's center ID; zero while the faction
// has no center.
func (c *BuildingCreator) Capital() model.EntityID { return c.scopes[0].id() }

// Scopes lists every scope's center ID, capital first.
func (c *BuildingCreator) Scopes() []model.EntityID {
	out := make([]model.EntityID, len(c.scopes))
	for i, s := range c.scopes {
		out[i] = s.id()
	}
	return out
}

// Regulator returns the regulator for code in a scope.
func (c *BuildingCreator) Regulator(scopeID model.EntityID, code string) (*regulator.BuildingRegulator, bool) {
	s := c.scopeByID(scopeID)
	if s == nil {
		return nil, false
	}
	return s.set.Get(code)
}

// Group assembles a profile group from the regulators of one scope.
func (c *BuildingCreator) Group(name string, scopeID model.EntityID) *regulator.Group[*model.Building] {
	g := regulator.NewGroup[*model.Building](name)
	s := c.scopeByID(scopeID)
	if s == nil {
		return g
	}
	for _, m := range c.ctx.Profile.Group(name) {
		if reg, ok := s.set.Get(m.Code); ok {
			g.Add(reg, m.Weight)
		}
	}
	return g
}

func (c *BuildingCreator) onPlaced(ev event.Event) {
	b := ev.(event.BuildingPlaced).Building
	if b.Owner != c.ctx.Faction {
		return
	}
	if reg := c.committer(b); reg != nil {
		reg.Commit(b)
	}
}

// committer picks the regulator a placed building realizes. The game may
// place it across a border, so the scope it landed in only wins while it
// has a request in flight for the type; otherwise any scope waiting on
// one does. Centers always fall back to the capital.
func (c *BuildingCreator) committer(b *model.Building) *regulator.BuildingRegulator {
	var landed *regulator.BuildingRegulator
	if s := c.route(b); s != nil {
		if reg, ok := s.set.Get(b.Type); ok {
			if reg.Pending() > 0 {
				return reg
			}
			landed = reg
		}
	}
	for _, s := range c.scopes {
		if reg, ok := s.set.Get(b.Type); ok && reg.Pending() > 0 {
			return reg
		}
	}
	if landed != nil {
		return landed
	}
	if reg, ok := c.scopes[0].set.Get(b.Type); ok {
		return reg
	}
	return nil
}

func (c *BuildingCreator) onBuilt(ev event.Event) {
	b := ev.(event.BuildingBuilt).Building
	if b.Owner != c.ctx.Faction || !c.isCenter(b.Type) || c.scopeByID(b.ID) != nil {
		return
	}
	if c.scopes[0].center == nil {
		c.scopes[0].center = b
		c.scopes[0].set.Scope = b.ID
		c.log.Info("capital established", "center", b.ID)
		c.Activate()
		return
	}
	if _, err := c.addScope(b, false); err != nil {
		// Building configs were validated when the capital was built.
		c.log.Warn("territory scope not created", "center", b.ID, "error", err)
		return
	}
	c.log.Info("territory scope created", "center", b.ID, "scopes", len(c.scopes))
	c.Activate()
}

func (c *BuildingCreator) onDestroyed(ev event.Event) {
	b := ev.(event.BuildingDestroyed).Building
	if b.Owner != c.ctx.Faction {
		return
	}
	c.lose(b)
}

func (c *BuildingCreator) onConverted(ev event.Event) {
	e := ev.(event.BuildingConverted)
	switch {
	case e.Building.Owner == c.ctx.Faction:
		if s := c.route(e.Building); s != nil {
			if reg, ok := s.set.Get(e.Building.Type); ok {
				reg.AddExisting(e.Building)
			}
		}
	case e.From == c.ctx.Faction:
		c.lose(e.Building)
	}
}

// lose untracks a building that left the faction and tears down the
// scope it was the center of.
func (c *BuildingCreator) lose(b *model.Building) {
	if _, reg := c.tracking(b); reg != nil {
		reg.Remove(b)
	}
	s := c.scopeByID(b.ID)
	if s == nil || b.ID == 0 {
		return
	}
	if s == c.scopes[0] {
		c.loseCapital()
		return
	}
	s.set.Release()
	for i, other := range c.scopes {
		if other == s {
			c.scopes = append(c.scopes[:i], c.scopes[i+1:]...)
			break
		}
	}
	c.log.Info("territory scope lost", "center", b.ID, "scopes", len(c.scopes))
}

// loseCapital promotes the next scope to capital, carrying the center
// regulators over. Without another scope the capital stays, centerless,
// so it can rebuild.
func (c *BuildingCreator) loseCapital() {
	old := c.scopes[0]
	if len(c.scopes) == 1 {
		old.center = nil
		old.set.Scope = 0
		c.log.Info("capital lost")
		c.Activate()
		return
	}
	next := c.scopes[1]
	var survivors []*model.Building
	for _, reg := range old.set.All() {
		if !c.isCenter(reg.Code()) {
			survivors = append(survivors, reg.Instances()...)
			continue
		}
		old.set.Remove(reg.Code())
		next.set.Add(reg)
		next.slots[strings.ToLower(reg.Code())] = old.slots[strings.ToLower(reg.Code())]
	}
	old.set.Release()
	c.scopes = c.scopes[1:]
	// Buildings of the lost territory now fall back to the new capital.
	for _, b := range survivors {
		if s := c.route(b); s != nil {
			if reg, ok := s.set.Get(b.Type); ok {
				reg.AddExisting(b)
			}
		}
	}
	c.log.Info("capital moved", "center", next.id(), "adopted", len(survivors))
	c.Activate()
}

func (c *BuildingCreator) onUpgraded(ev event.Event) {
	e := ev.(event.BuildingUpgraded)
	if e.Building.Owner != c.ctx.Faction {
		return
	}
	cfg, ok := c.ctx.Profile.BuildingConfig(e.To)
	if !ok {
		cfg = profile.RegulatorConfig{Code: e.To, MaxPending: 1, Placement: profile.Placement{Strategy: profile.AnchorCenter}}
		if old, found := c.ctx.Profile.BuildingConfig(e.From); found {
			cfg.Min, cfg.Max, cfg.Cooldown, cfg.AutoCreate = old.Min, old.Max, old.Cooldown, old.AutoCreate
		}
	}
	for _, s := range c.scopes {
		oldReg, ok := s.set.Remove(e.From)
		if !ok {
			continue
		}
		delete(s.slots, strings.ToLower(e.From))
		carried := oldReg.Min()
		oldReg.Release()
		if reg, exists := s.set.Get(e.To); exists {
			if reg.Min() < carried {
				reg.SetMin(carried)
			}
			continue
		}
		if err := c.addRegulator(s, cfg, carried); err != nil {
			c.log.Warn("upgrade regulator not created", "from", e.From, "to", e.To, "error", err)
		}
	}
	if s := c.route(e.Building); s != nil {
		if reg, ok := s.set.Get(e.To); ok {
			reg.AddExisting(e.Building)
		}
	}
	c.log.Info("regulator upgraded", "from", e.From, "to", e.To)
	c.Activate()
}

func (c *BuildingCreator) onCancelled(ev event.Event) {
	e := ev.(event.ProductionCancelled)
	if e.Faction != c.ctx.Faction {
		return
	}
	s := c.scopeByID(e.Scope)
	if s == nil {
		s = c.scopes[0]
	}
	if reg, ok := s.set.Get(e.Code); ok {
		reg.CancelPending()
	}
}

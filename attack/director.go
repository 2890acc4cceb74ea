// Package attack runs the faction's offensive: choosing an enemy, gating
// the launch on resources, and steering the engagement until the force is
// spent or the enemy falls.
package attack

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/rules"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Director is the attack planner.
type Director struct {
	planner.Activation

	ctx       *planner.Context
	log       *slog.Logger
	cfg       profile.AttackConfig
	campaign  Campaign
	defending bool

	selectTimer *sample.Timer
	launchTimer *sample.Timer
	engageTimer *sample.Timer
	events      *event.Group
}

func NewDirector() *Director { return &Director{} }

func (d *Director) Kind() planner.Kind { return planner.KindAttack }

func (d *Director) Init(ctx *planner.Context) error {
	d.ctx = ctx
	d.log = ctx.Logger(d.Kind())
	d.cfg = ctx.Profile.Attack
	d.selectTimer = sample.NewTimer(d.cfg.SelectInterval, ctx.Rand)
	d.launchTimer = sample.NewTimer(d.cfg.LaunchInterval, ctx.Rand)
	d.engageTimer = sample.NewTimer(d.cfg.EngageInterval, ctx.Rand)

	d.events = event.NewGroup(ctx.Bus)
	d.events.On(event.KindUnitDestroyed, func(ev event.Event) {
		d.campaign.dropUnit(ev.(event.UnitDestroyed).Unit.ID)
	})
	d.events.On(event.KindUnitConverted, func(ev event.Event) {
		e := ev.(event.UnitConverted)
		if e.From == ctx.Faction {
			d.campaign.dropUnit(e.Unit.ID)
		}
	})
	d.events.On(event.KindUnitReassigned, func(ev event.Event) {
		e := ev.(event.UnitReassigned)
		if e.Faction == ctx.Faction && e.By != string(d.Kind()) {
			d.campaign.dropUnit(e.UnitID)
		}
	})
	d.events.On(event.KindFactionEliminated, func(ev event.Event) {
		e := ev.(event.FactionEliminated)
		if d.campaign.TargetFaction == "" || e.Faction != d.campaign.TargetFaction {
			return
		}
		if d.campaign.Phase == PhaseEngaging {
			d.Retreat("target eliminated")
			return
		}
		d.log.Info("target faction eliminated before launch", "target", e.Faction)
		d.campaign.reset()
		d.setPhase(PhaseIdle)
	})

	if d.cfg.Enabled {
		d.Activate()
	}
	return nil
}

func (d *Director) Close() {
	if d.events != nil {
		d.events.Close()
	}
}

// Campaign returns a copy of the current campaign.
func (d *Director) Campaign() Campaign {
	c := d.campaign
	c.Units = append([]model.EntityID(nil), d.campaign.Units...)
	return c
}

func (d *Director) Phase() Phase { return d.campaign.Phase }

// SetDefending blocks launching while the faction defends itself.
func (d *Director) SetDefending(on bool) {
	if on != d.defending {
		d.log.Debug("defend stance", "on", on)
	}
	d.defending = on
}

func (d *Director) Defending() bool { return d.defending }

func (d *Director) Tick(dt float64) {
	if !d.cfg.Enabled {
		d.Deactivate()
		return
	}
	switch d.campaign.Phase {
	case PhaseIdle, PhaseSelectingTarget:
		if d.ctx.Directory.Elapsed() < d.cfg.PeaceTime {
			return
		}
		if d.selectTimer.Tick(dt) && d.campaign.TargetFaction == "" {
			d.SelectTarget()
		}
		if d.campaign.TargetFaction != "" && d.launchTimer.Tick(dt) {
			d.TryLaunch()
		}
	case PhaseEngaging:
		if d.engageTimer.Tick(dt) {
			d.Engage()
		}
	}
}

// SelectTarget ranks the live enemy factions by the configured criterion
// and picks one by strategy. Reports whether a target was set.
func (d *Director) SelectTarget() bool {
	type ranked struct {
		id    string
		score float64
	}
	var candidates []ranked
	for _, f := range d.ctx.Directory.Factions() {
		if f.Eliminated || f.ID == d.ctx.Faction {
			continue
		}
		score, err := d.cfg.Compiled.Eval(d.factionEnv(f))
		if err != nil {
			d.log.Debug("criterion evaluation failed", "faction", f.ID, "error", err)
			continue
		}
		candidates = append(candidates, ranked{id: f.ID, score: score})
	}
	if len(candidates) == 0 {
		return false
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var pick ranked
	switch d.cfg.Strategy {
	case profile.PickMost:
		pick = candidates[0]
	case profile.PickLeast:
		pick = candidates[len(candidates)-1]
	default:
		pick = candidates[d.ctx.Rand.IntN(len(candidates))]
	}
	d.campaign.ID = uuid.New()
	d.campaign.TargetFaction = pick.id
	d.setPhase(PhaseSelectingTarget)
	d.log.Info("attack target selected", "campaign", d.campaign.ID, "target", pick.id, "score", pick.score, "strategy", d.cfg.Strategy)
	return true
}

func (d *Director) factionEnv(f model.Faction) rules.Env {
	counts := rules.CountTypes(d.ctx.Directory.Units(f.ID))
	for code, n := range rules.CountTypes(d.ctx.Directory.Buildings(f.ID)) {
		counts[code] += n
	}
	return rules.NewEnv(f, counts, d.ctx.Directory.Elapsed())
}

// thresholdsMet re-samples every threshold and checks the faction's
// balance against it.
func (d *Director) thresholdsMet(list []profile.Threshold) bool {
	self, ok := d.ctx.Self()
	if !ok {
		return false
	}
	for _, th := range list {
		if float64(self.Resources[th.Resource]) < th.Amount.Sample(d.ctx.Rand) {
			return false
		}
	}
	return true
}

// TryLaunch checks the launch gates and, when they pass, starts the
// engagement. Reports whether the campaign is now engaging.
func (d *Director) TryLaunch() bool {
	if d.campaign.Phase == PhaseEngaging {
		return true
	}
	if d.defending || d.campaign.TargetFaction == "" {
		return false
	}
	if !d.thresholdsMet(d.cfg.MinResources) {
		return false
	}
	roster := d.roster()
	if len(roster) == 0 || len(roster) < d.cfg.MinUnits {
		return false
	}
	self, _ := d.ctx.Self()
	d.campaign.LastPosition = self.Home
	if !d.retarget() {
		return false
	}

	d.setPhase(PhaseLaunching)
	d.campaign.Units = roster
	d.setPhase(PhaseEngaging)
	d.engageTimer.Expire()
	d.log.Info("attack launched", "campaign", d.campaign.ID, "target", d.campaign.TargetFaction,
		"entity", d.campaign.Target, "units", len(roster))
	return true
}

// roster snapshots the army group.
func (d *Director) roster() []model.EntityID {
	var out []model.EntityID
	if uc, ok := planner.Lookup[*production.UnitCreator](d.ctx.Registry, planner.KindUnitCreator); ok {
		for _, u := range uc.Group(d.cfg.Army).Instances() {
			out = append(out, u.ID)
		}
	} else {
		codes := make(map[string]bool)
		for _, c := range d.ctx.Profile.GroupCodes(d.cfg.Army) {
			codes[strings.ToLower(c)] = true
		}
		for _, u := range d.ctx.Directory.Units(d.ctx.Faction) {
			if codes[strings.ToLower(u.Type)] {
				out = append(out, u.ID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// retarget picks the target entity nearest to the last attack position.
// Units qualify once no building is left and every entity must fall for a
// defeat.
func (d *Director) retarget() bool {
	ref := d.campaign.LastPosition
	var ids []model.EntityID
	var points []model.Point
	for _, b := range d.ctx.Directory.Buildings(d.campaign.TargetFaction) {
		ids = append(ids, b.ID)
		points = append(points, b.Pos())
	}
	isUnit := false
	if len(ids) == 0 && d.cfg.TargetUnits {
		for _, u := range d.ctx.Directory.Units(d.campaign.TargetFaction) {
			ids = append(ids, u.ID)
			points = append(points, u.Pos())
		}
		isUnit = true
	}
	i := d.ctx.Geometry.NearestOf(points, ref)
	if i < 0 {
		d.campaign.Target = 0
		return false
	}
	d.campaign.Target = ids[i]
	d.campaign.TargetIsUnit = isUnit
	return true
}

// targetAlive reports whether the current target still belongs to the
// target faction, and where it is.
func (d *Director) targetAlive() (model.Point, bool) {
	if d.campaign.Target == 0 {
		return model.Point{}, false
	}
	if d.campaign.TargetIsUnit {
		u, ok := d.ctx.Directory.Unit(d.campaign.Target)
		if !ok || u.Owner != d.campaign.TargetFaction {
			return model.Point{}, false
		}
		return u.Pos(), true
	}
	b, ok := d.ctx.Directory.Building(d.campaign.Target)
	if !ok || b.Owner != d.campaign.TargetFaction {
		return model.Point{}, false
	}
	return b.Pos(), true
}

// Engage is one engagement check: retreat when the force is gone or the
// economy cannot sustain it, otherwise steer idle members at the target.
func (d *Director) Engage() {
	if d.campaign.Phase != PhaseEngaging {
		return
	}
	d.prune()
	if len(d.campaign.Units) == 0 {
		d.Retreat("force destroyed")
		return
	}
	if len(d.cfg.CancelBelow) > 0 && !d.cancelThresholdsHold() {
		d.Retreat("resources low")
		return
	}
	pos, ok := d.targetAlive()
	if !ok {
		if !d.retarget() {
			d.Retreat("no targets left")
			return
		}
		pos, _ = d.targetAlive()
	}

	target := d.campaign.Target
	if !d.campaign.TargetIsUnit {
		if id, at, ok := d.nearestBuilder(target, d.campaign.LastPosition); ok {
			target, pos = id, at
		}
	}

	var idle []model.EntityID
	for _, id := range d.campaign.Units {
		if u, ok := d.ctx.Directory.Unit(id); ok && u.Idle {
			idle = append(idle, id)
		}
	}
	if len(idle) > 0 && d.ctx.Orders.Attack(idle, target) {
		d.log.Debug("attack ordered", "target", target, "units", len(idle))
	}
	d.campaign.LastPosition = pos
}

// cancelThresholdsHold re-samples every cancel threshold on each call;
// consecutive checks within one tick may see different thresholds.
func (d *Director) cancelThresholdsHold() bool {
	return d.thresholdsMet(d.cfg.CancelBelow)
}

// nearestBuilder returns the enemy unit constructing building closest to
// ref, which is attacked before the building itself.
func (d *Director) nearestBuilder(building model.EntityID, ref model.Point) (model.EntityID, model.Point, bool) {
	var ids []model.EntityID
	var points []model.Point
	for _, u := range d.ctx.Directory.Builders(building) {
		if u.Owner == d.campaign.TargetFaction {
			ids = append(ids, u.ID)
			points = append(points, u.Pos())
		}
	}
	i := d.ctx.Geometry.NearestOf(points, ref)
	if i < 0 {
		return 0, model.Point{}, false
	}
	return ids[i], points[i], true
}

// prune drops members the directory no longer lists as ours.
func (d *Director) prune() {
	kept := d.campaign.Units[:0]
	for _, id := range d.campaign.Units {
		if u, ok := d.ctx.Directory.Unit(id); ok && u.Owner == d.ctx.Faction {
			kept = append(kept, id)
		}
	}
	d.campaign.Units = kept
}

// Retreat sends the force home and clears the campaign.
func (d *Director) Retreat(reason string) {
	if d.campaign.Phase == PhaseIdle {
		return
	}
	self, _ := d.ctx.Self()
	d.setPhase(PhaseRetreating)
	if len(d.campaign.Units) > 0 {
		d.ctx.Orders.Move(d.campaign.Units, self.Home)
	}
	d.log.Info("attack retreating", "campaign", d.campaign.ID, "target", d.campaign.TargetFaction, "reason", reason)
	d.campaign.reset()
	d.setPhase(PhaseIdle)
	d.selectTimer.Reset()
	d.launchTimer.Reset()
}

func (d *Director) setPhase(p Phase) {
	d.campaign.Phase = p
	d.ctx.Bus.Publish(event.CampaignPhase{
		Faction:       d.ctx.Faction,
		Campaign:      d.campaign.ID.String(),
		Phase:         p.String(),
		TargetFaction: d.campaign.TargetFaction,
		Target:        d.campaign.Target,
	})
}

package economy

import (
	"log/slog"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/attack"
	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Defense answers attacks on the faction's buildings: launches are held
// back and the idle army is sent to the building under attack. The stance
// clears once no attack was reported for a sampled quiet period.
type Defense struct {
	planner.Activation

	ctx    *planner.Context
	log    *slog.Logger
	cfg    profile.DefenseConfig
	quiet  *sample.Timer
	events *event.Group
}

func NewDefense() *Defense { return &Defense{} }

func (d *Defense) Kind() planner.Kind { return planner.KindDefense }

func (d *Defense) Init(ctx *planner.Context) error {
	d.ctx = ctx
	d.log = ctx.Logger(d.Kind())
	d.cfg = ctx.Profile.Defense
	d.quiet = sample.NewTimer(d.cfg.Quiet, ctx.Rand)
	if !d.cfg.Enabled {
		return nil
	}
	d.events = event.NewGroup(ctx.Bus)
	d.events.On(event.KindBuildingAttacked, func(ev event.Event) {
		e := ev.(event.BuildingAttacked)
		if e.Building.Owner == ctx.Faction {
			d.Respond(e.Building)
		}
	})
	return nil
}

func (d *Defense) Close() {
	if d.events != nil {
		d.events.Close()
	}
}

// Respond raises the defend stance and moves idle army units to b.
// Returns how many units were sent.
func (d *Defense) Respond(b *model.Building) int {
	if !d.IsActive() {
		d.log.Info("defending", "building", b.ID, "type", b.Type)
	}
	d.quiet.Reset()
	d.Activate()
	if dir, ok := planner.Lookup[*attack.Director](d.ctx.Registry, planner.KindAttack); ok {
		dir.SetDefending(true)
	}

	var idle []model.EntityID
	for _, u := range d.army() {
		// Tracked instances may predate the current snapshot.
		if cur, ok := d.ctx.Directory.Unit(u.ID); ok && cur.Idle && cur.Owner == d.ctx.Faction {
			idle = append(idle, cur.ID)
		}
	}
	if len(idle) == 0 || !d.ctx.Orders.Move(idle, b.Pos()) {
		return 0
	}
	return len(idle)
}

func (d *Defense) army() []*model.Unit {
	if uc, ok := planner.Lookup[*production.UnitCreator](d.ctx.Registry, planner.KindUnitCreator); ok {
		return uc.Group(d.cfg.Army).Instances()
	}
	codes := make(map[string]bool)
	for _, c := range d.ctx.Profile.GroupCodes(d.cfg.Army) {
		codes[strings.ToLower(c)] = true
	}
	var out []*model.Unit
	for _, u := range d.ctx.Directory.Units(d.ctx.Faction) {
		if codes[strings.ToLower(u.Type)] {
			out = append(out, u)
		}
	}
	return out
}

func (d *Defense) Tick(dt float64) {
	if !d.quiet.Tick(dt) {
		return
	}
	if dir, ok := planner.Lookup[*attack.Director](d.ctx.Registry, planner.KindAttack); ok {
		dir.SetDefending(false)
	}
	d.log.Info("defense stood down")
	d.Deactivate()
}

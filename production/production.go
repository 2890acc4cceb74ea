// Package production keeps a faction's supply of units and buildings at
// the targets its regulators define. UnitCreator owns the faction-wide
// unit regulators; BuildingCreator owns one regulator set per territory
// center.
package production

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// slot pairs one regulator with its configuration and cooldown.
type slot[T regulator.Instance] struct {
	reg      *regulator.Regulator[T]
	cfg      profile.RegulatorConfig
	entity   *profile.Entity
	cooldown *sample.Timer
}

func newSlot[T regulator.Instance](reg *regulator.Regulator[T], cfg profile.RegulatorConfig, ent *profile.Entity, src *sample.Source) *slot[T] {
	s := &slot[T]{reg: reg, cfg: cfg, entity: ent, cooldown: sample.NewTimer(cfg.Cooldown, src)}
	// The first attempt does not wait for a cooldown.
	s.cooldown.Expire()
	return s
}

// wantsMore reports whether the slot is below its minimum.
func (s *slot[T]) wantsMore() bool {
	return s.cfg.AutoCreate && !s.reg.HasReachedMin()
}

// waiting reports whether the slot still has work the creator must stay
// active for: below min and either able to queue more or waiting on its
// in-flight requests.
func (s *slot[T]) waiting() bool {
	return s.wantsMore() && (s.reg.Pending() > 0 || !s.reg.HasReachedMax())
}

// prerequisites checks the catalog requirements and the compiled gating
// condition against the faction's current state.
func prerequisites(ctx *planner.Context, ent *profile.Entity, log *slog.Logger) bool {
	env := ctx.Env()
	for _, code := range ent.Requires {
		if !env.Has(code) {
			return false
		}
	}
	ok, err := ent.Compiled.Eval(env)
	if err != nil {
		log.Debug("condition evaluation failed", "code", ent.Code, "error", err)
		return false
	}
	return ok
}

// affordable asks the production service whether cost can be paid now.
func affordable(ctx *planner.Context, ent *profile.Entity) bool {
	return ctx.Production.HasResources(model.Cost(ent.Cost), ctx.Faction)
}

// accepted books an accepted request: resources are reserved and the
// regulator counts one more pending instance.
func accepted[T regulator.Instance](ctx *planner.Context, s *slot[T]) {
	ctx.Production.ReserveResources(model.Cost(s.entity.Cost), ctx.Faction)
	s.reg.AddPending()
}

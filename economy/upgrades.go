package economy

import (
	"log/slog"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Upgrades orders the configured entity upgrades once they are affordable
// and their condition holds. At most one order per source code is in
// flight; the matching upgrade event clears it, or a sampled timeout when
// the game never carries the order out.
type Upgrades struct {
	planner.Activation

	ctx      *planner.Context
	log      *slog.Logger
	items    []profile.Upgrade
	timer    *sample.Timer
	timeout  sample.Range
	inFlight map[string]float64 // source code -> expiry, in game seconds
	events   *event.Group
}

func NewUpgrades() *Upgrades { return &Upgrades{inFlight: make(map[string]float64)} }

func (u *Upgrades) Kind() planner.Kind { return planner.KindUpgrades }

func (u *Upgrades) Init(ctx *planner.Context) error {
	u.ctx = ctx
	u.log = ctx.Logger(u.Kind())
	u.items = ctx.Profile.Upgrades.Items
	u.timer = sample.NewTimer(ctx.Profile.Upgrades.Interval, ctx.Rand)
	u.timeout = ctx.Profile.Upgrades.Timeout
	if u.timeout.Max <= 0 {
		u.timeout = sample.Fixed(profile.DefaultUpgradeTimeout)
	}
	if len(u.items) == 0 {
		return nil
	}

	u.events = event.NewGroup(ctx.Bus)
	u.events.On(event.KindBuildingUpgraded, func(ev event.Event) {
		e := ev.(event.BuildingUpgraded)
		if e.Building.Owner == ctx.Faction {
			u.completed(e.From, e.To)
		}
	})
	u.events.On(event.KindUnitUpgraded, func(ev event.Event) {
		e := ev.(event.UnitUpgraded)
		if e.Faction == ctx.Faction {
			u.completed(e.From, e.To)
		}
	})
	// New entities may be upgrade sources.
	u.events.On(event.KindBuildingBuilt, func(ev event.Event) {
		if ev.(event.BuildingBuilt).Building.Owner == ctx.Faction {
			u.Activate()
		}
	})
	u.events.On(event.KindUnitCreated, func(ev event.Event) {
		if ev.(event.UnitCreated).Unit.Owner == ctx.Faction {
			u.Activate()
		}
	})
	u.Activate()
	return nil
}

func (u *Upgrades) Close() {
	if u.events != nil {
		u.events.Close()
	}
}

func (u *Upgrades) Tick(dt float64) {
	if !u.timer.Tick(dt) {
		return
	}
	if u.Check() == 0 && len(u.inFlight) == 0 {
		u.Deactivate()
	}
}

// InFlight reports whether an upgrade of from has been ordered and not yet
// observed.
func (u *Upgrades) InFlight(from string) bool {
	_, ok := u.inFlight[strings.ToLower(from)]
	return ok
}

// Check orders every upgrade that is due and returns how many upgrade
// sources the faction still owns.
func (u *Upgrades) Check() int {
	env := u.ctx.Env()
	now := u.ctx.Directory.Elapsed()
	sources := 0
	for _, it := range u.items {
		if !env.Has(it.From) {
			continue
		}
		sources++
		key := strings.ToLower(it.From)
		if expiry, ok := u.inFlight[key]; ok {
			if now < expiry {
				continue
			}
			delete(u.inFlight, key)
			u.log.Warn("upgrade never observed, ordering again", "from", it.From, "to", it.To)
		}
		if !u.ctx.Production.HasResources(model.Cost(it.Cost), u.ctx.Faction) {
			continue
		}
		ok, err := it.Compiled.Eval(env)
		if err != nil {
			u.log.Debug("upgrade condition failed", "from", it.From, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if !u.ctx.Orders.Upgrade(u.ctx.Faction, it.From) {
			u.log.Debug("upgrade refused", "from", it.From, "to", it.To)
			continue
		}
		u.inFlight[key] = now + u.timeout.Sample(u.ctx.Rand)
		u.log.Info("upgrade ordered", "from", it.From, "to", it.To)
	}
	return sources
}

func (u *Upgrades) completed(from, to string) {
	key := strings.ToLower(from)
	if _, ok := u.inFlight[key]; !ok {
		return
	}
	delete(u.inFlight, key)
	u.log.Info("upgrade completed", "from", from, "to", to)
	u.Activate()
}

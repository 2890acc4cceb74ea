// Package planner defines the activate/deactivate-and-tick contract every
// faction planner follows, the shared faction context handed to planners
// at startup, and the Orchestrator that drives them.
package planner

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/rules"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/world"
)

// Kind is the registry key of a planner. One instance per kind per faction.
type Kind string

const (
	KindUnitCreator     Kind = "unit_creator"
	KindBuildingCreator Kind = "building_creator"
	KindTasks           Kind = "tasks"
	KindCollection      Kind = "collection"
	KindAttack          Kind = "attack"
	KindPopulation      Kind = "population"
	KindTerritory       Kind = "territory"
	KindUpgrades        Kind = "upgrades"
	KindConstruction    Kind = "construction"
	KindDefense         Kind = "defense"
)

// Planner is one independently timed concern of the faction AI. Tick is
// only invoked while IsActive; a planner deactivates itself when it has
// nothing to do and is re-activated by events or other planners.
type Planner interface {
	Kind() Kind
	// Init wires the planner to the faction context and subscribes its
	// event handlers. A returned error is fatal for the faction's AI.
	Init(ctx *Context) error
	Activate()
	Deactivate()
	IsActive() bool
	Tick(dt float64)
	// Close releases event subscriptions.
	Close()
}

// Activator is the subset of Planner that regulators and other planners
// use to wake a planner up.
type Activator interface {
	Activate()
}

// Activation implements the active flag. Embed it.
type Activation struct {
	active bool
}

func (a *Activation) Activate()      { a.active = true }
func (a *Activation) Deactivate()    { a.active = false }
func (a *Activation) IsActive() bool { return a.active }

// Context is the shared faction state handed to every planner in Init.
type Context struct {
	Faction    string
	Profile    *profile.Profile
	Bus        *event.Bus
	Rand       *sample.Source
	Directory  world.Directory
	Production world.ProductionService
	Placement  world.PlacementService
	Geometry   world.Geometry
	Orders     world.Orders
	Registry   *Orchestrator
	Log        *slog.Logger
}

// Logger returns the context logger scoped to a planner kind.
func (c *Context) Logger(kind Kind) *slog.Logger {
	l := c.Log
	if l == nil {
		l = slog.Default()
	}
	return l.With("faction", c.Faction, "planner", string(kind))
}

// Self returns this faction's directory entry.
func (c *Context) Self() (model.Faction, bool) {
	return c.Directory.Faction(c.Faction)
}

// Env builds the expression environment for this faction from the
// directory: balances plus counts of every owned unit and every completed
// building.
func (c *Context) Env() rules.Env {
	f, _ := c.Directory.Faction(c.Faction)
	counts := rules.CountTypes(c.Directory.Units(c.Faction))
	var built []*model.Building
	for _, b := range c.Directory.Buildings(c.Faction) {
		if b.Built {
			built = append(built, b)
		}
	}
	for code, n := range rules.CountTypes(built) {
		counts[code] += n
	}
	return rules.NewEnv(f, counts, c.Directory.Elapsed())
}

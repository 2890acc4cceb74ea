package agent

import (
	"fmt"
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/attack"
	"github.com/nstehr/vimy/vimy-faction/economy"
	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/harvest"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/tasks"
	"github.com/nstehr/vimy/vimy-faction/world"
)

// Services are the game-side dependencies of a controller.
type Services struct {
	Directory  world.Directory
	Production world.ProductionService
	Placement  world.PlacementService
	Orders     world.Orders
	Geometry   world.Geometry // defaults to world.Euclid
}

// Controller is the AI of one faction: every planner, wired to one bus.
type Controller struct {
	faction   string
	bus       *event.Bus
	orch      *planner.Orchestrator
	ctx       *planner.Context
	scheduler *tasks.Scheduler
	units     *production.UnitCreator
	buildings *production.BuildingCreator
}

// Bootstrap builds and initializes the controller for faction. The
// current directory contents are adopted as existing instances. A
// configuration problem is returned as a *profile.ConfigError and no
// controller is started.
func Bootstrap(faction string, p *profile.Profile, svc Services, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc.Geometry == nil {
		svc.Geometry = world.Euclid{}
	}

	ledger := regulator.NewCategoryLedger(p.CategoryLimits)
	c := &Controller{
		faction:   faction,
		bus:       event.NewBus(),
		orch:      planner.NewOrchestrator(log),
		scheduler: tasks.NewScheduler(),
		units:     production.NewUnitCreator(ledger),
		buildings: production.NewBuildingCreator(ledger),
	}
	planners := []planner.Planner{
		c.scheduler,
		c.units,
		c.buildings,
		harvest.New(),
		attack.NewDirector(),
		economy.NewPopulation(),
		economy.NewTerritory(),
		economy.NewUpgrades(),
		economy.NewConstruction(),
		economy.NewDefense(),
	}
	for _, pl := range planners {
		if err := c.orch.Register(pl); err != nil {
			return nil, err
		}
	}

	c.ctx = &planner.Context{
		Faction:    faction,
		Profile:    p,
		Bus:        c.bus,
		Rand:       sample.NewSource(p.Seed),
		Directory:  svc.Directory,
		Production: svc.Production,
		Placement:  svc.Placement,
		Geometry:   svc.Geometry,
		Orders:     svc.Orders,
		Log:        log,
	}
	if err := c.orch.Init(c.ctx); err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", faction, err)
	}
	log.Info("faction controller started", "faction", faction, "profile", p.Name, "active", c.orch.Active())
	return c, nil
}

func (c *Controller) Faction() string { return c.faction }

// Bus is the controller's event bus. Game events are published here.
func (c *Controller) Bus() *event.Bus { return c.bus }

// Orchestrator exposes the planner registry.
func (c *Controller) Orchestrator() *planner.Orchestrator { return c.orch }

// Tick advances every active planner by dt seconds.
func (c *Controller) Tick(dt float64) {
	c.orch.Tick(dt)
}

// SubmitTask queues maintenance work for target. Collection tasks take
// their resource from the target node.
func (c *Controller) SubmitTask(kind tasks.Kind, target model.EntityID, priority int) {
	e := tasks.Entry{Kind: kind, Target: target}
	if kind == tasks.KindCollect {
		if n, ok := c.ctx.Directory.ResourceNode(target); ok {
			e.Resource = n.Resource
		}
	}
	c.scheduler.AddTask(e, priority)
}

// QueryTargetCount returns the supply target for code: the unit maximum,
// or the sum of building maxima over every scope.
func (c *Controller) QueryTargetCount(code string) int {
	ent, ok := c.ctx.Profile.Entity(code)
	if !ok {
		return 0
	}
	if ent.Kind == profile.KindUnit {
		return c.units.QueryTargetCount(code)
	}
	return c.buildings.QueryTargetCount(code)
}

// RequestProduction asks for one instance of code now and reports
// whether the game accepted it.
func (c *Controller) RequestProduction(code string, forced bool) bool {
	ent, ok := c.ctx.Profile.Entity(code)
	if !ok {
		return false
	}
	var out world.Outcome
	if ent.Kind == profile.KindUnit {
		out = c.units.RequestProduction(code, forced)
	} else {
		out = c.buildings.RequestProduction(code, forced)
	}
	c.ctx.Logger(planner.Kind("controller")).Debug("production requested", "code", code, "forced", forced, "outcome", out.String())
	return out == world.OutcomeAccepted
}

// Close detaches every planner from the bus.
func (c *Controller) Close() {
	c.orch.Close()
}

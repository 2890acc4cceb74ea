package economy

import (
	"io"
	"log/slog"
	"testing"

	"github.com/nstehr/vimy/vimy-faction/attack"
	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/tasks"
	"github.com/nstehr/vimy/vimy-faction/world"
	"github.com/nstehr/vimy/vimy-faction/world/worldtest"
)

const testProfile = `
profiles:
  - name: test
    catalog:
      - {code: worker, kind: unit, category: civilian, cost: {gold: 50}}
      - {code: soldier, kind: unit, category: military, cost: {gold: 60}}
      - {code: town_center, kind: building, category: center, cost: {gold: 400}, center: true, upgrades_to: keep}
      - {code: keep, kind: building, category: center, cost: {gold: 300}, center: true}
      - {code: house, kind: building, category: housing, cost: {wood: 60}, provides: 5}
    units:
      - {code: worker, min: {min: 0, max: 0}, max: {min: 10, max: 10}}
      - {code: soldier, min: {min: 0, max: 0}, max: {min: 10, max: 10}}
    buildings:
      - {code: town_center, min: {min: 1, max: 1}, max: {min: 1, max: 1}, auto_create: true}
      - {code: house, min: {min: 0, max: 0}, max: {min: 3, max: 3}, auto_create: true}
      - {code: keep, min: {min: 0, max: 0}, max: {min: 1, max: 1}}
    groups:
      army: [{code: soldier, weight: 1}]
      builders: [{code: worker, weight: 1}]
      housing: [{code: house, weight: 1}]
    tasks:
      levels: 2
      promotion: {min: 100, max: 100}
      drain: {min: 100, max: 100}
    population:
      interval: {min: 1, max: 1}
      free_slots: {min: 3, max: 3}
      housing: housing
    territory:
      enabled: true
      interval: {min: 1, max: 1}
      centers: {min: 2, max: 2}
      center: town_center
      resource: gold
      min_resources:
        - {resource: gold, amount: {min: 500, max: 500}}
    upgrades:
      interval: {min: 1, max: 1}
      items:
        - {from: town_center, to: keep, cost: {gold: 300}, condition: 'Population >= 5'}
    construction:
      interval: {min: 1, max: 1}
      builders: {min: 2, max: 2}
      group: builders
      priority: 1
      repair: true
    defense:
      enabled: true
      quiet: {min: 10, max: 10}
      army: army
`

type fixture struct {
	fake      *worldtest.Fake
	ctx       *planner.Context
	scheduler *tasks.Scheduler
	units     *production.UnitCreator
	buildings *production.BuildingCreator
	director  *attack.Director
}

// newFixture runs the production, task and attack planners for faction
// "ai" plus p under test. seed edits the world before any Init.
func newFixture(t *testing.T, p planner.Planner, seed func(*worldtest.Fake), tweak func(*profile.Profile)) *fixture {
	t.Helper()
	set, err := profile.Parse([]byte(testProfile))
	if err != nil {
		t.Fatal(err)
	}
	prof, _ := set.Get("test")
	if tweak != nil {
		tweak(prof)
	}

	fake := worldtest.New(model.Faction{
		ID:            "ai",
		Resources:     map[string]int{"gold": 1000, "wood": 500},
		Population:    8,
		PopulationCap: 10,
	})
	fake.BuildingList = []*model.Building{
		{ID: 1, Owner: "ai", Type: "town_center", X: 10, Y: 10, Built: true, Scope: 1},
	}
	fake.UnitList = []*model.Unit{
		{ID: 100, Owner: "ai", Type: "worker", Idle: true},
		{ID: 101, Owner: "ai", Type: "worker", Idle: true, X: 20, Y: 20},
		{ID: 200, Owner: "ai", Type: "soldier", Idle: true, X: 40, Y: 40},
		{ID: 201, Owner: "ai", Type: "soldier", Idle: true, X: 41, Y: 40},
		{ID: 202, Owner: "ai", Type: "soldier", X: 42, Y: 40},
	}
	if seed != nil {
		seed(fake)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := &planner.Context{
		Faction:    "ai",
		Profile:    prof,
		Bus:        event.NewBus(),
		Rand:       sample.NewSource(9),
		Directory:  fake,
		Production: fake,
		Placement:  fake,
		Geometry:   world.Euclid{},
		Orders:     fake,
		Log:        log,
	}
	ledger := regulator.NewCategoryLedger(prof.CategoryLimits)
	f := &fixture{
		fake:      fake,
		ctx:       ctx,
		scheduler: tasks.NewScheduler(),
		units:     production.NewUnitCreator(ledger),
		buildings: production.NewBuildingCreator(ledger),
		director:  attack.NewDirector(),
	}
	o := planner.NewOrchestrator(log)
	for _, pl := range []planner.Planner{f.scheduler, f.units, f.buildings, f.director, p} {
		if err := o.Register(pl); err != nil {
			t.Fatal(err)
		}
	}
	if err := o.Init(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(o.Close)
	return f
}

package production

import (
	"io"
	"log/slog"
	"testing"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/world"
	"github.com/nstehr/vimy/vimy-faction/world/worldtest"
)

const testProfile = `
profiles:
  - name: test
    seed: 3
    catalog:
      - {code: worker, kind: unit, category: civilian, cost: {gold: 50}, requires: [town_center]}
      - {code: town_center, kind: building, category: center, cost: {gold: 400}, center: true, upgrades_to: keep}
      - {code: keep, kind: building, category: center, cost: {gold: 300}, center: true}
      - {code: house, kind: building, category: housing, cost: {wood: 60}}
      - {code: storehouse, kind: building, category: economy, cost: {wood: 100}}
    units:
      - code: worker
        min: {min: 2, max: 2}
        max: {min: 5, max: 5}
        max_pending: 1
        auto_create: true
    buildings:
      - code: town_center
        min: {min: 1, max: 1}
        max: {min: 1, max: 1}
        auto_create: true
      - code: house
        min: {min: 1, max: 1}
        max: {min: 3, max: 3}
        auto_create: true
      - code: storehouse
        min: {min: 1, max: 1}
        max: {min: 1, max: 1}
        auto_create: true
        placement: {strategy: resource, target: wood}
      - code: keep
        min: {min: 0, max: 0}
        max: {min: 1, max: 1}
`

func newFixture(t *testing.T) (*worldtest.Fake, *planner.Context) {
	t.Helper()
	set, err := profile.Parse([]byte(testProfile))
	if err != nil {
		t.Fatal(err)
	}
	p, err := set.Get("test")
	if err != nil {
		t.Fatal(err)
	}
	fake := worldtest.New(model.Faction{ID: "ai", Resources: map[string]int{"gold": 1000, "wood": 500}, PopulationCap: 20, Home: model.Point{X: 10, Y: 10}})
	fake.BuildingList = []*model.Building{{ID: 1, Owner: "ai", Type: "town_center", X: 10, Y: 10, HP: 100, MaxHP: 100, Built: true, Scope: 1}}
	ctx := &planner.Context{
		Faction:    "ai",
		Profile:    p,
		Bus:        event.NewBus(),
		Rand:       sample.NewSource(1),
		Directory:  fake,
		Production: fake,
		Placement:  fake,
		Geometry:   world.Euclid{},
		Orders:     fake,
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return fake, ctx
}

func newUnits(t *testing.T, ctx *planner.Context) *UnitCreator {
	t.Helper()
	c := NewUnitCreator(regulator.NewCategoryLedger(nil))
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func TestWorkerSupplyReachesMinimum(t *testing.T) {
	fake, ctx := newFixture(t)
	c := newUnits(t, ctx)
	reg, _ := c.Regulator("worker")

	c.Tick(1)
	if reg.Pending() != 1 || reg.Current() != 0 {
		t.Fatalf("after first cycle: current=%d pending=%d", reg.Current(), reg.Pending())
	}
	c.Tick(1)
	if len(fake.Produced) != 1 {
		t.Fatalf("a second request was queued while one was pending: %d", len(fake.Produced))
	}

	ctx.Bus.Publish(event.UnitCreated{Unit: &model.Unit{ID: 10, Owner: "ai", Type: "worker"}})
	if reg.Current() != 1 || reg.Pending() != 0 {
		t.Fatalf("after materializing: current=%d pending=%d", reg.Current(), reg.Pending())
	}

	c.Tick(1)
	ctx.Bus.Publish(event.UnitCreated{Unit: &model.Unit{ID: 11, Owner: "ai", Type: "worker"}})
	if !reg.HasReachedMin() {
		t.Fatalf("min not reached at current=%d", reg.Current())
	}
	c.Tick(1)
	if c.IsActive() {
		t.Error("creator still active with every regulator at min")
	}
	if got := fake.FactionList[0].Resources["gold"]; got != 900 {
		t.Errorf("gold after two workers = %d, want 900", got)
	}
}

func TestDestroyedUnitReactivates(t *testing.T) {
	_, ctx := newFixture(t)
	c := newUnits(t, ctx)
	w1 := &model.Unit{ID: 10, Owner: "ai", Type: "worker"}
	w2 := &model.Unit{ID: 11, Owner: "ai", Type: "worker"}
	ctx.Bus.Publish(event.UnitCreated{Unit: w1})
	ctx.Bus.Publish(event.UnitCreated{Unit: w2})
	c.Tick(1)
	if c.IsActive() {
		t.Fatal("expected deactivation")
	}

	ctx.Bus.Publish(event.UnitDestroyed{Unit: w1})
	if !c.IsActive() {
		t.Error("destroying a worker did not re-activate the creator")
	}
	// A foreign unit never touches our counts.
	reg, _ := c.Regulator("worker")
	ctx.Bus.Publish(event.UnitDestroyed{Unit: &model.Unit{ID: 99, Owner: "enemy", Type: "worker"}})
	if reg.Current() != 1 {
		t.Errorf("current = %d, want 1", reg.Current())
	}
}

func TestSoftFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *worldtest.Fake)
		want  world.Outcome
	}{
		{"insufficient", func(f *worldtest.Fake) { f.SetResource("ai", "gold", 10) }, world.OutcomeInsufficientResources},
		{"requirements", func(f *worldtest.Fake) { f.BuildingList = nil }, world.OutcomeRequirementsUnmet},
		{"rejected", func(f *worldtest.Fake) { f.Outcome = world.OutcomeRejected }, world.OutcomeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, ctx := newFixture(t)
			c := newUnits(t, ctx)
			tt.setup(fake)
			if got := c.RequestProduction("worker", true); got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}
			reg, _ := c.Regulator("worker")
			if reg.Pending() != 0 || len(fake.Reserved) != 0 {
				t.Errorf("soft failure left pending=%d reserved=%d", reg.Pending(), len(fake.Reserved))
			}
		})
	}
}

func TestForcedRequestIgnoresMinimum(t *testing.T) {
	_, ctx := newFixture(t)
	c := newUnits(t, ctx)
	ctx.Bus.Publish(event.UnitCreated{Unit: &model.Unit{ID: 10, Owner: "ai", Type: "worker"}})
	ctx.Bus.Publish(event.UnitCreated{Unit: &model.Unit{ID: 11, Owner: "ai", Type: "worker"}})

	if got := c.RequestProduction("worker", false); got != world.OutcomeSatisfied {
		t.Errorf("unforced request at min = %v", got)
	}
	if got := c.RequestProduction("worker", true); got != world.OutcomeAccepted {
		t.Errorf("forced request = %v", got)
	}
	if got := c.RequestProduction("worker", true); got != world.OutcomeAtMaximum {
		t.Errorf("forced request beyond maxPending = %v", got)
	}
	if got := c.RequestProduction("dragon", true); got != world.OutcomeUnknownEntity {
		t.Errorf("unknown code = %v", got)
	}
	if got := c.QueryTargetCount("worker"); got != 5 {
		t.Errorf("QueryTargetCount = %d, want 5", got)
	}
}

func TestProductionCancelledReleasesPending(t *testing.T) {
	_, ctx := newFixture(t)
	c := newUnits(t, ctx)
	c.Tick(1)
	reg, _ := c.Regulator("worker")
	ctx.Bus.Publish(event.ProductionCancelled{Faction: "ai", Code: "worker"})
	if reg.Pending() != 0 {
		t.Errorf("pending = %d after cancellation", reg.Pending())
	}
}

func newBuildings(t *testing.T, ctx *planner.Context) *BuildingCreator {
	t.Helper()
	c := NewBuildingCreator(regulator.NewCategoryLedger(nil))
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func TestBuildingPlacementAnchors(t *testing.T) {
	fake, ctx := newFixture(t)
	c := newBuildings(t, ctx)
	if c.Capital() != 1 {
		t.Fatalf("capital = %d, want 1", c.Capital())
	}

	c.Tick(1)
	if len(fake.Produced) != 1 || fake.Produced[0].Code != "house" {
		t.Fatalf("produced = %+v, want one house", fake.Produced)
	}
	hint := fake.Produced[0].Hint
	if hint.Scope != 1 || !hint.HasSpot || hint.Position != (model.Point{X: 12, Y: 12}) {
		t.Errorf("house hint = %+v", hint)
	}

	// The storehouse waits for a wood node in the capital's territory.
	fake.Nodes = []*model.ResourceNode{
		{ID: 50, Resource: "gold", X: 5, Y: 5, Capacity: 10, Remaining: 10, Scope: 1},
		{ID: 51, Resource: "wood", X: 30, Y: 30, Capacity: 10, Remaining: 10, Scope: 1},
	}
	c.Tick(1)
	if len(fake.Produced) != 2 || fake.Produced[1].Code != "storehouse" {
		t.Fatalf("produced = %+v, want a storehouse", fake.Produced)
	}
	last := fake.Placements[len(fake.Placements)-1]
	if last.Strategy != profile.AnchorResource || last.Ref != 51 {
		t.Errorf("storehouse anchor = %+v, want wood node 51", last)
	}

	house, _ := c.Regulator(1, "house")
	ctx.Bus.Publish(event.BuildingPlaced{Building: &model.Building{ID: 5, Owner: "ai", Type: "house", Scope: 1}})
	if house.Current() != 1 || house.Pending() != 0 {
		t.Errorf("house current=%d pending=%d", house.Current(), house.Pending())
	}
}

func TestNoPlacementIsSoft(t *testing.T) {
	fake, ctx := newFixture(t)
	c := newBuildings(t, ctx)
	fake.NoPlacement = true
	if got := c.RequestProduction("house", true); got != world.OutcomeNoPlacement {
		t.Errorf("outcome = %v", got)
	}
	if len(fake.Reserved) != 0 {
		t.Error("resources reserved for an unplaced building")
	}
}

func TestCenterScopes(t *testing.T) {
	_, ctx := newFixture(t)
	c := newBuildings(t, ctx)

	outpost := &model.Building{ID: 2, Owner: "ai", Type: "town_center", X: 100, Y: 100, Built: true}
	ctx.Bus.Publish(event.BuildingPlaced{Building: outpost})
	ctx.Bus.Publish(event.BuildingBuilt{Building: outpost})

	if got := c.Scopes(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("scopes = %v", got)
	}
	if _, ok := c.Regulator(2, "town_center"); ok {
		t.Error("expansion scope regulates centers")
	}
	if _, ok := c.Regulator(2, "house"); !ok {
		t.Error("expansion scope has no house regulator")
	}
	centers, _ := c.Regulator(1, "town_center")
	if centers.Current() != 2 {
		t.Errorf("capital tracks %d centers, want 2", centers.Current())
	}

	ctx.Bus.Publish(event.BuildingDestroyed{Building: outpost})
	if got := c.Scopes(); len(got) != 1 {
		t.Errorf("scopes after losing the outpost = %v", got)
	}
	if centers.Current() != 1 {
		t.Errorf("capital tracks %d centers after loss, want 1", centers.Current())
	}
}

func TestUpgradeCarriesMinimum(t *testing.T) {
	_, ctx := newFixture(t)
	c := newBuildings(t, ctx)

	upgraded := &model.Building{ID: 1, Owner: "ai", Type: "keep", X: 10, Y: 10, Built: true, Scope: 1}
	ctx.Bus.Publish(event.BuildingUpgraded{Building: upgraded, From: "town_center", To: "keep"})

	if _, ok := c.Regulator(1, "town_center"); ok {
		t.Error("old regulator survived the upgrade")
	}
	keep, ok := c.Regulator(1, "keep")
	if !ok {
		t.Fatal("no keep regulator")
	}
	if keep.Min() < 1 || keep.Current() != 1 {
		t.Errorf("keep min=%d current=%d", keep.Min(), keep.Current())
	}
}

func addOutpost(t *testing.T, ctx *planner.Context, c *BuildingCreator) *model.Building {
	t.Helper()
	outpost := &model.Building{ID: 2, Owner: "ai", Type: "town_center", X: 100, Y: 100, Built: true}
	ctx.Bus.Publish(event.BuildingPlaced{Building: outpost})
	ctx.Bus.Publish(event.BuildingBuilt{Building: outpost})
	if len(c.Scopes()) != 2 {
		t.Fatalf("scopes = %v", c.Scopes())
	}
	return outpost
}

func TestPlacementAcrossBorderCommitsRequest(t *testing.T) {
	_, ctx := newFixture(t)
	c := newBuildings(t, ctx)
	addOutpost(t, ctx, c)

	if out := c.RequestProductionIn(1, "house", true); out != world.OutcomeAccepted {
		t.Fatalf("request = %v", out)
	}
	capital, _ := c.Regulator(1, "house")
	outpost, _ := c.Regulator(2, "house")
	if capital.Pending() != 1 {
		t.Fatalf("capital pending = %d", capital.Pending())
	}

	// The game put the capital's house inside the outpost's territory.
	ctx.Bus.Publish(event.BuildingPlaced{Building: &model.Building{ID: 6, Owner: "ai", Type: "house", Scope: 2}})
	if capital.Pending() != 0 || capital.Current() != 1 {
		t.Errorf("capital house current=%d pending=%d, want the request realized", capital.Current(), capital.Pending())
	}
	if capital.HasReachedMax() {
		t.Error("capital house stuck at its maximum")
	}
	if outpost.Current() != 0 {
		t.Errorf("outpost counted the capital's house: current=%d", outpost.Current())
	}

	// Without a request anywhere the landing scope counts it.
	ctx.Bus.Publish(event.BuildingPlaced{Building: &model.Building{ID: 7, Owner: "ai", Type: "house", Scope: 2}})
	if outpost.Current() != 1 {
		t.Errorf("outpost house current = %d, want 1", outpost.Current())
	}
}

func TestCapitalLossAdoptsSurvivors(t *testing.T) {
	fake, ctx := newFixture(t)
	fake.BuildingList = append(fake.BuildingList, &model.Building{ID: 5, Owner: "ai", Type: "house", X: 12, Y: 12, Built: true, Scope: 1})
	c := newBuildings(t, ctx)
	addOutpost(t, ctx, c)

	ctx.Bus.Publish(event.BuildingDestroyed{Building: fake.BuildingList[0]})
	if got := c.Scopes(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("scopes after losing the capital = %v", got)
	}
	house, _ := c.Regulator(2, "house")
	if house.Current() != 1 || !house.Tracks(5) {
		t.Errorf("new capital house current=%d, want the surviving house adopted", house.Current())
	}
	centers, ok := c.Regulator(2, "town_center")
	if !ok || centers.Current() != 1 {
		t.Errorf("center regulator not carried over: %v", centers)
	}
}

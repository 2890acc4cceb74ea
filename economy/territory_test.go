package economy

import (
	"testing"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/world"
	"github.com/nstehr/vimy/vimy-faction/world/worldtest"
)

func goldNodes(w *worldtest.Fake) {
	w.Nodes = []*model.ResourceNode{
		{ID: 61, Resource: "gold", X: 12, Y: 12, Capacity: 4, Remaining: 500, Scope: 1},
		{ID: 60, Resource: "gold", X: 30, Y: 30, Capacity: 4, Remaining: 500},
		{ID: 62, Resource: "gold", X: 80, Y: 80, Capacity: 4, Remaining: 500},
		{ID: 63, Resource: "wood", X: 5, Y: 5, Capacity: 4, Remaining: 500},
	}
}

func TestTerritoryExpandsNextToNearestFreeNode(t *testing.T) {
	tr := NewTerritory()
	f := newFixture(t, tr, goldNodes, nil)

	if got := tr.Expand(); got != world.OutcomeAccepted {
		t.Fatalf("Expand = %v", got)
	}
	if len(f.fake.Produced) != 1 || f.fake.Produced[0].Code != "town_center" {
		t.Fatalf("produced = %+v", f.fake.Produced)
	}
	if a := f.fake.Placements[0]; a.Ref != 60 {
		t.Errorf("anchored on node %d, want 60", a.Ref)
	}
	if pos := f.fake.Produced[0].Hint.Position; pos != (model.Point{X: 32, Y: 32}) {
		t.Errorf("placed at %+v", pos)
	}
	reg, _ := f.buildings.Regulator(1, "town_center")
	if reg.Min() != 2 || reg.Pending() != 1 {
		t.Errorf("center regulator min=%d pending=%d", reg.Min(), reg.Pending())
	}

	if got := tr.Expand(); got != world.OutcomeCooldown {
		t.Errorf("second Expand with a center in flight = %v", got)
	}
}

func TestTerritoryFollowsCenterUpgrade(t *testing.T) {
	tr := NewTerritory()
	f := newFixture(t, tr, goldNodes, nil)

	keep := &model.Building{ID: 1, Owner: "ai", Type: "keep", X: 10, Y: 10, Built: true, Scope: 1}
	f.fake.BuildingList[0] = keep
	f.ctx.Bus.Publish(event.BuildingUpgraded{Building: keep, From: "town_center", To: "keep"})
	if _, ok := f.buildings.Regulator(1, "town_center"); ok {
		t.Fatal("town_center regulator survived the upgrade")
	}

	if got := tr.Expand(); got != world.OutcomeAccepted {
		t.Fatalf("Expand after upgrade = %v", got)
	}
	if len(f.fake.Produced) != 1 || f.fake.Produced[0].Code != "keep" {
		t.Errorf("produced = %+v, want a keep", f.fake.Produced)
	}
	reg, _ := f.buildings.Regulator(1, "keep")
	if reg.Pending() != 1 {
		t.Errorf("keep pending = %d", reg.Pending())
	}
}

func TestTerritoryGates(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fixture)
		want  world.Outcome
	}{
		{"poor", func(f *fixture) { f.fake.SetResource("ai", "gold", 100) }, world.OutcomeInsufficientResources},
		{"no free node", func(f *fixture) {
			for _, n := range f.fake.Nodes {
				n.Scope = 1
			}
		}, world.OutcomeNoPlacement},
		{"target met", func(f *fixture) {
			second := &model.Building{ID: 2, Owner: "ai", Type: "town_center", X: 70, Y: 70, Built: true, Scope: 2}
			f.fake.BuildingList = append(f.fake.BuildingList, second)
			f.ctx.Bus.Publish(event.BuildingBuilt{Building: second})
		}, world.OutcomeSatisfied},
		{"game rejects", func(f *fixture) { f.fake.Outcome = world.OutcomeRejected }, world.OutcomeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTerritory()
			f := newFixture(t, tr, goldNodes, nil)
			tt.setup(f)

			if got := tr.Expand(); got != tt.want {
				t.Errorf("Expand = %v, want %v", got, tt.want)
			}
			reg, _ := f.buildings.Regulator(1, "town_center")
			if reg.Min() != 1 || reg.Pending() != 0 {
				t.Errorf("center regulator left at min=%d pending=%d", reg.Min(), reg.Pending())
			}
		})
	}
}

func TestTerritoryDisabled(t *testing.T) {
	tr := NewTerritory()
	newFixture(t, tr, goldNodes, func(p *profile.Profile) { p.Territory.Enabled = false })
	if tr.IsActive() {
		t.Error("disabled territory planner is active")
	}
}

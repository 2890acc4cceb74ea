package agent

import (
	"testing"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
)

// baseGameState returns a minimal game state for testing.
func baseGameState(elapsed float64) *model.GameState {
	return &model.GameState{
		Tick:    int(elapsed * 25),
		Elapsed: elapsed,
		Player:  model.Player{Name: "p1", Faction: "ai"},
		Factions: []model.Faction{
			{ID: "ai", Resources: map[string]int{"gold": 500}, Population: 4, PopulationCap: 10},
			{ID: "enemy", Resources: map[string]int{"gold": 500}},
		},
		Buildings: []model.Building{
			{ID: 1, Owner: "ai", Type: "town_center", X: 20, Y: 20, HP: 100, MaxHP: 100, Built: true, Scope: 1},
			{ID: 2, Owner: "ai", Type: "house", X: 24, Y: 20, HP: 10, MaxHP: 50, Scope: 1},
			{ID: 9, Owner: "enemy", Type: "tower", X: 80, Y: 80, HP: 100, MaxHP: 100, Built: true},
		},
		Units: []model.Unit{
			{ID: 10, Owner: "ai", Type: "worker", X: 18, Y: 18, Collecting: 30},
			{ID: 11, Owner: "ai", Type: "worker", X: 22, Y: 22, Building: 2},
			{ID: 12, Owner: "ai", Type: "soldier", X: 21, Y: 21, Idle: true},
			{ID: 50, Owner: "enemy", Type: "soldier", X: 70, Y: 70},
		},
		ResourceNodes: []model.ResourceNode{
			{ID: 30, Resource: "gold", X: 15, Y: 15, Capacity: 4, Remaining: 800},
			{ID: 31, Resource: "wood", X: 30, Y: 15, Capacity: 4, Remaining: 5},
		},
	}
}

func kinds(events []event.Event) []event.Kind {
	out := make([]event.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind()
	}
	return out
}

func TestDetectEvents_NilPrev(t *testing.T) {
	if events := detectEvents("ai", nil, baseGameState(1)); events != nil {
		t.Errorf("expected nil events for nil prev, got %+v", events)
	}
}

func TestDetectEvents_NoEvents(t *testing.T) {
	if events := detectEvents("ai", baseGameState(1), baseGameState(2)); len(events) != 0 {
		t.Errorf("expected 0 events, got %v", kinds(events))
	}
}

func TestDetectEvents(t *testing.T) {
	tests := []struct {
		name   string
		change func(gs *model.GameState)
		want   []event.Kind
	}{
		{"unit created", func(gs *model.GameState) {
			gs.Units = append(gs.Units, model.Unit{ID: 13, Owner: "ai", Type: "worker"})
		}, []event.Kind{event.KindUnitCreated}},
		{"unit destroyed", func(gs *model.GameState) {
			gs.Units = gs.Units[1:]
		}, []event.Kind{event.KindUnitDestroyed}},
		{"unit converted", func(gs *model.GameState) {
			gs.Units[3].Owner = "ai"
		}, []event.Kind{event.KindUnitConverted}},
		{"collection switched", func(gs *model.GameState) {
			gs.Units[0].Collecting = 31
		}, []event.Kind{event.KindCollectionStopped, event.KindCollectionStarted}},
		{"builder left site", func(gs *model.GameState) {
			gs.Units[1].Building = 0
		}, []event.Kind{event.KindConstructionStopped}},
		{"building placed", func(gs *model.GameState) {
			gs.Buildings = append(gs.Buildings, model.Building{ID: 3, Owner: "ai", Type: "house"})
		}, []event.Kind{event.KindBuildingPlaced}},
		{"building completed", func(gs *model.GameState) {
			gs.Buildings[1].Built = true
		}, []event.Kind{event.KindBuildingBuilt}},
		{"building hit", func(gs *model.GameState) {
			gs.Buildings[0].HP = 70
		}, []event.Kind{event.KindBuildingDamaged, event.KindBuildingAttacked}},
		{"site hit", func(gs *model.GameState) {
			gs.Buildings[1].HP = 5
		}, []event.Kind{event.KindBuildingAttacked}},
		{"enemy building hit", func(gs *model.GameState) {
			gs.Buildings[2].HP = 10
		}, nil},
		{"building upgraded", func(gs *model.GameState) {
			gs.Buildings[0].Type = "keep"
		}, []event.Kind{event.KindBuildingUpgraded}},
		{"building destroyed", func(gs *model.GameState) {
			gs.Buildings = gs.Buildings[:2]
		}, []event.Kind{event.KindBuildingDestroyed}},
		{"population", func(gs *model.GameState) {
			gs.Factions[0].PopulationCap = 15
		}, []event.Kind{event.KindPopulationChanged}},
		{"eliminated", func(gs *model.GameState) {
			gs.Factions[1].Eliminated = true
		}, []event.Kind{event.KindFactionEliminated}},
		{"node discovered", func(gs *model.GameState) {
			gs.ResourceNodes = append(gs.ResourceNodes, model.ResourceNode{ID: 32, Resource: "gold", Remaining: 100})
		}, []event.Kind{event.KindResourceNodeDiscovered}},
		{"node emptied", func(gs *model.GameState) {
			gs.ResourceNodes[1].Remaining = 0
		}, []event.Kind{event.KindResourceNodeDepleted}},
		{"node gone", func(gs *model.GameState) {
			gs.ResourceNodes = gs.ResourceNodes[:1]
		}, []event.Kind{event.KindResourceNodeDepleted}},
		{"production cancelled", func(gs *model.GameState) {
			gs.Cancelled = []model.QueueItem{{Code: "house", Scope: 1}}
		}, []event.Kind{event.KindProductionCancelled}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := baseGameState(2)
			tt.change(cur)
			got := kinds(detectEvents("ai", baseGameState(1), cur))
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("events = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestDetectEvents_OrderAndPayloads(t *testing.T) {
	prev := baseGameState(1)
	cur := baseGameState(2)
	cur.Buildings[0].HP = 60
	cur.Attacks = []model.AttackReport{{Building: 1, X: 30, Y: 31}}
	cur.Units = append(cur.Units, model.Unit{ID: 13, Owner: "ai", Type: "worker", Collecting: 30})
	cur.Units = cur.Units[1:] // worker 10 dies

	events := detectEvents("ai", prev, cur)
	want := []event.Kind{
		event.KindBuildingDamaged,
		event.KindBuildingAttacked,
		event.KindUnitCreated,
		event.KindCollectionStarted,
		event.KindUnitDestroyed,
	}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if a := events[1].(event.BuildingAttacked); a.Attacker != (model.Point{X: 30, Y: 31}) {
		t.Errorf("attacker = %v", a.Attacker)
	}
	if s := events[3].(event.CollectionStarted); s.Unit != 13 || s.Node.ID != 30 {
		t.Errorf("collection started = %+v", s)
	}
	if d := events[4].(event.UnitDestroyed); d.Unit.ID != 10 || d.Unit.Collecting != 30 {
		t.Errorf("destroyed unit = %+v, want last known state of 10", d.Unit)
	}
}

func TestDetectEvents_UnitUpgradeOncePerCode(t *testing.T) {
	prev := baseGameState(1)
	cur := baseGameState(2)
	cur.Units[0].Type = "peasant"
	cur.Units[1].Type = "peasant"

	var upgrades []event.UnitUpgraded
	for _, ev := range detectEvents("ai", prev, cur) {
		if u, ok := ev.(event.UnitUpgraded); ok {
			upgrades = append(upgrades, u)
		}
	}
	if len(upgrades) != 1 || upgrades[0].From != "worker" || upgrades[0].To != "peasant" {
		t.Errorf("upgrades = %+v", upgrades)
	}
}

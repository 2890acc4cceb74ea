// Package worldtest provides an in-memory game for planner tests. Fake
// implements every world service and records the requests it receives.
package worldtest

import (
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/world"
)

type Produced struct {
	Faction string
	Code    string
	Hint    world.PlacementHint
}

type AttackOrder struct {
	Units  []model.EntityID
	Target model.EntityID
}

type MoveOrder struct {
	Units []model.EntityID
	To    model.Point
}

type UnitOrder struct {
	Unit   model.EntityID
	Target model.EntityID
}

// Fake is a mutable game snapshot. Tests edit the exported slices
// directly between ticks.
type Fake struct {
	Now          float64
	FactionList  []model.Faction
	UnitList     []*model.Unit
	BuildingList []*model.Building
	Nodes        []*model.ResourceNode
	Working      map[model.EntityID][]model.EntityID // construction site -> builders

	Outcome     world.Outcome // returned by Produce; zero value accepts
	NoPlacement bool
	Refuse      bool // orders return false

	Produced   []Produced
	Reserved   []model.Cost
	Placements []world.Anchor
	Attacks    []AttackOrder
	Moves      []MoveOrder
	Collects   []UnitOrder
	Constructs []UnitOrder
	Upgrades   []string
}

func New(factions ...model.Faction) *Fake {
	return &Fake{FactionList: factions, Working: make(map[model.EntityID][]model.EntityID)}
}

// SetResource overwrites one balance of a faction.
func (f *Fake) SetResource(faction, res string, amount int) {
	for i := range f.FactionList {
		if f.FactionList[i].ID == faction {
			if f.FactionList[i].Resources == nil {
				f.FactionList[i].Resources = make(map[string]int)
			}
			f.FactionList[i].Resources[res] = amount
		}
	}
}

func (f *Fake) Faction(id string) (model.Faction, bool) {
	for _, fa := range f.FactionList {
		if fa.ID == id {
			return fa, true
		}
	}
	return model.Faction{}, false
}

func (f *Fake) Factions() []model.Faction { return f.FactionList }

func (f *Fake) Units(faction string) []*model.Unit {
	var out []*model.Unit
	for _, u := range f.UnitList {
		if u.Owner == faction {
			out = append(out, u)
		}
	}
	return out
}

func (f *Fake) Buildings(faction string) []*model.Building {
	var out []*model.Building
	for _, b := range f.BuildingList {
		if b.Owner == faction {
			out = append(out, b)
		}
	}
	return out
}

func (f *Fake) Unit(id model.EntityID) (*model.Unit, bool) {
	for _, u := range f.UnitList {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

func (f *Fake) Building(id model.EntityID) (*model.Building, bool) {
	for _, b := range f.BuildingList {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

func (f *Fake) ResourceNodes() []*model.ResourceNode { return f.Nodes }

func (f *Fake) ResourceNode(id model.EntityID) (*model.ResourceNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

func (f *Fake) Builders(building model.EntityID) []*model.Unit {
	var out []*model.Unit
	for _, id := range f.Working[building] {
		if u, ok := f.Unit(id); ok {
			out = append(out, u)
		}
	}
	return out
}

func (f *Fake) Elapsed() float64 { return f.Now }

// RemoveUnit deletes a unit from the snapshot.
func (f *Fake) RemoveUnit(id model.EntityID) {
	for i, u := range f.UnitList {
		if u.ID == id {
			f.UnitList = append(f.UnitList[:i], f.UnitList[i+1:]...)
			return
		}
	}
}

// RemoveBuilding deletes a building from the snapshot.
func (f *Fake) RemoveBuilding(id model.EntityID) {
	for i, b := range f.BuildingList {
		if b.ID == id {
			f.BuildingList = append(f.BuildingList[:i], f.BuildingList[i+1:]...)
			return
		}
	}
}

func (f *Fake) Produce(faction, code string, hint world.PlacementHint) world.Outcome {
	if f.Outcome != world.OutcomeAccepted {
		return f.Outcome
	}
	f.Produced = append(f.Produced, Produced{Faction: faction, Code: code, Hint: hint})
	return world.OutcomeAccepted
}

func (f *Fake) HasResources(cost model.Cost, faction string) bool {
	fa, ok := f.Faction(faction)
	return ok && fa.Affords(cost)
}

func (f *Fake) ReserveResources(cost model.Cost, faction string) {
	f.Reserved = append(f.Reserved, cost)
	for i := range f.FactionList {
		if f.FactionList[i].ID != faction {
			continue
		}
		for res, n := range cost {
			f.FactionList[i].Resources[res] -= n
		}
	}
}

func (f *Fake) FindPlacement(code string, scope model.EntityID, anchor world.Anchor) (model.Point, bool) {
	f.Placements = append(f.Placements, anchor)
	if f.NoPlacement {
		return model.Point{}, false
	}
	return model.Point{X: anchor.Position.X + 2, Y: anchor.Position.Y + 2}, true
}

func (f *Fake) Attack(units []model.EntityID, target model.EntityID) bool {
	if f.Refuse {
		return false
	}
	f.Attacks = append(f.Attacks, AttackOrder{Units: append([]model.EntityID(nil), units...), Target: target})
	return true
}

func (f *Fake) Move(units []model.EntityID, to model.Point) bool {
	if f.Refuse {
		return false
	}
	f.Moves = append(f.Moves, MoveOrder{Units: append([]model.EntityID(nil), units...), To: to})
	return true
}

func (f *Fake) Collect(unit, node model.EntityID) bool {
	if f.Refuse {
		return false
	}
	f.Collects = append(f.Collects, UnitOrder{Unit: unit, Target: node})
	return true
}

func (f *Fake) Construct(unit, building model.EntityID) bool {
	if f.Refuse {
		return false
	}
	f.Constructs = append(f.Constructs, UnitOrder{Unit: unit, Target: building})
	f.Working[building] = append(f.Working[building], unit)
	return true
}

func (f *Fake) Upgrade(faction, code string) bool {
	if f.Refuse {
		return false
	}
	f.Upgrades = append(f.Upgrades, code)
	return true
}

var (
	_ world.Directory         = (*Fake)(nil)
	_ world.ProductionService = (*Fake)(nil)
	_ world.PlacementService  = (*Fake)(nil)
	_ world.Orders            = (*Fake)(nil)
)

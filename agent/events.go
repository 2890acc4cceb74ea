package agent

import (
	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
)

// snapshot indexes the diffable parts of one game state.
type snapshot struct {
	factions  map[string]model.Faction
	units     map[model.EntityID]*model.Unit
	buildings map[model.EntityID]*model.Building
	nodes     map[model.EntityID]*model.ResourceNode
}

func takeSnapshot(gs *model.GameState) snapshot {
	snap := snapshot{
		factions:  make(map[string]model.Faction, len(gs.Factions)),
		units:     make(map[model.EntityID]*model.Unit, len(gs.Units)),
		buildings: make(map[model.EntityID]*model.Building, len(gs.Buildings)),
		nodes:     make(map[model.EntityID]*model.ResourceNode, len(gs.ResourceNodes)),
	}
	for _, f := range gs.Factions {
		snap.factions[f.ID] = f
	}
	for i := range gs.Units {
		snap.units[gs.Units[i].ID] = &gs.Units[i]
	}
	for i := range gs.Buildings {
		snap.buildings[gs.Buildings[i].ID] = &gs.Buildings[i]
	}
	for i := range gs.ResourceNodes {
		snap.nodes[gs.ResourceNodes[i].ID] = &gs.ResourceNodes[i]
	}
	return snap
}

// detectEvents compares the current game state against the previous one
// and returns the lifecycle events between them, in publication order:
// factions, resource nodes, buildings, cancelled production, units.
// Entities that disappeared are reported with their last known state.
// Returns nil if prev is nil (first state).
func detectEvents(self string, prev, cur *model.GameState) []event.Event {
	if prev == nil {
		return nil
	}
	before, after := takeSnapshot(prev), takeSnapshot(cur)
	var events []event.Event

	// 1. factions: our population and cap, eliminations.
	for _, f := range cur.Factions {
		old, seen := before.factions[f.ID]
		if f.ID == self && (!seen || old.Population != f.Population || old.PopulationCap != f.PopulationCap) {
			events = append(events, event.PopulationChanged{Faction: f.ID, Population: f.Population, Cap: f.PopulationCap})
		}
		if f.Eliminated && (!seen || !old.Eliminated) {
			events = append(events, event.FactionEliminated{Faction: f.ID})
		}
	}

	// 2. resource nodes: discovered, depleted (emptied or gone).
	for i := range cur.ResourceNodes {
		n := &cur.ResourceNodes[i]
		old, seen := before.nodes[n.ID]
		switch {
		case !seen && n.Exploitable():
			events = append(events, event.ResourceNodeDiscovered{Faction: self, Node: n})
		case seen && old.Exploitable() && !n.Exploitable():
			events = append(events, event.ResourceNodeDepleted{Node: n})
		}
	}
	for i := range prev.ResourceNodes {
		n := &prev.ResourceNodes[i]
		if _, ok := after.nodes[n.ID]; !ok && n.Exploitable() {
			events = append(events, event.ResourceNodeDepleted{Node: n})
		}
	}

	// 3. buildings
	for i := range cur.Buildings {
		b := &cur.Buildings[i]
		old, seen := before.buildings[b.ID]
		if !seen {
			events = append(events, event.BuildingPlaced{Building: b})
			if b.Built {
				events = append(events, event.BuildingBuilt{Building: b})
			}
			continue
		}
		if old.Owner != b.Owner {
			events = append(events, event.BuildingConverted{Building: b, From: old.Owner})
		}
		if old.Type != b.Type {
			events = append(events, event.BuildingUpgraded{Building: b, From: old.Type, To: b.Type})
		}
		if !old.Built && b.Built {
			events = append(events, event.BuildingBuilt{Building: b})
		}
		if b.Owner == self && b.HP < old.HP {
			if b.Built {
				events = append(events, event.BuildingDamaged{Building: b})
			}
			events = append(events, event.BuildingAttacked{Building: b, Attacker: attacker(cur, b)})
		}
	}
	for i := range prev.Buildings {
		b := &prev.Buildings[i]
		if _, ok := after.buildings[b.ID]; !ok {
			events = append(events, event.BuildingDestroyed{Building: b})
		}
	}

	// 4. production the game dropped.
	for _, item := range cur.Cancelled {
		events = append(events, event.ProductionCancelled{Faction: self, Code: item.Code, Scope: item.Scope})
	}

	// 5. units. Type changes are reported once per code pair.
	upgraded := make(map[[2]string]bool)
	for i := range cur.Units {
		u := &cur.Units[i]
		old, seen := before.units[u.ID]
		if !seen {
			events = append(events, event.UnitCreated{Unit: u})
			events = appendWork(events, self, nil, u, before, after)
			continue
		}
		if old.Owner != u.Owner {
			events = append(events, event.UnitConverted{Unit: u, From: old.Owner})
		}
		if pair := [2]string{old.Type, u.Type}; old.Type != u.Type && u.Owner == self && !upgraded[pair] {
			upgraded[pair] = true
			events = append(events, event.UnitUpgraded{Faction: self, From: old.Type, To: u.Type})
		}
		events = appendWork(events, self, old, u, before, after)
	}
	for i := range prev.Units {
		u := &prev.Units[i]
		if _, ok := after.units[u.ID]; !ok {
			events = append(events, event.UnitDestroyed{Unit: u})
		}
	}

	return events
}

// appendWork reports our unit moving between resource nodes and
// construction sites. old is nil for a new unit.
func appendWork(events []event.Event, self string, old, u *model.Unit, before, after snapshot) []event.Event {
	if u.Owner != self {
		return events
	}
	var wasCollecting, wasBuilding model.EntityID
	if old != nil {
		wasCollecting, wasBuilding = old.Collecting, old.Building
	}
	if wasCollecting != u.Collecting {
		if n := lookup(after.nodes, before.nodes, wasCollecting); n != nil {
			events = append(events, event.CollectionStopped{Faction: self, Unit: u.ID, Node: n})
		}
		if n := lookup(after.nodes, before.nodes, u.Collecting); n != nil {
			events = append(events, event.CollectionStarted{Faction: self, Unit: u.ID, Node: n})
		}
	}
	if wasBuilding != u.Building {
		if b := lookup(after.buildings, before.buildings, wasBuilding); b != nil {
			events = append(events, event.ConstructionStopped{Building: b, Builder: u.ID})
		}
		if b := lookup(after.buildings, before.buildings, u.Building); b != nil {
			events = append(events, event.ConstructionStarted{Building: b, Builder: u.ID})
		}
	}
	return events
}

// lookup prefers the current entity and falls back to the previous one.
func lookup[T any](cur, prev map[model.EntityID]*T, id model.EntityID) *T {
	if id == 0 {
		return nil
	}
	if v, ok := cur[id]; ok {
		return v
	}
	return prev[id]
}

// attacker returns where the game says the shot came from, or the
// building itself when the state carries no report.
func attacker(gs *model.GameState, b *model.Building) model.Point {
	for _, a := range gs.Attacks {
		if a.Building == b.ID {
			return model.Point{X: a.X, Y: a.Y}
		}
	}
	return b.Pos()
}

package agent

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/ipc"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/world"
)

// placementRadius bounds the ring search around a placement anchor.
const placementRadius = 10

// footprint is the clearance, in cells, kept between buildings.
const footprint = 2

// World serves the controller's world interfaces from the latest game
// state and turns orders into ipc commands. Reservations live until the
// next state arrives, which already reflects the spending.
type World struct {
	faction string
	send    ipc.Sender
	terrain *model.TerrainGrid

	state     *model.GameState
	units     map[model.EntityID]*model.Unit
	buildings map[model.EntityID]*model.Building
	nodes     map[model.EntityID]*model.ResourceNode
	reserved  model.Cost
	commands  int
}

func NewWorld(faction string, send ipc.Sender, terrain *model.TerrainGrid) *World {
	w := &World{faction: faction, send: send, terrain: terrain}
	w.Update(&model.GameState{})
	return w
}

// Update replaces the snapshot. Entity pointers handed out earlier keep
// describing the previous state.
func (w *World) Update(gs *model.GameState) {
	w.state = gs
	w.units = make(map[model.EntityID]*model.Unit, len(gs.Units))
	for i := range gs.Units {
		w.units[gs.Units[i].ID] = &gs.Units[i]
	}
	w.buildings = make(map[model.EntityID]*model.Building, len(gs.Buildings))
	for i := range gs.Buildings {
		w.buildings[gs.Buildings[i].ID] = &gs.Buildings[i]
	}
	w.nodes = make(map[model.EntityID]*model.ResourceNode, len(gs.ResourceNodes))
	for i := range gs.ResourceNodes {
		w.nodes[gs.ResourceNodes[i].ID] = &gs.ResourceNodes[i]
	}
	w.reserved = make(model.Cost)
}

// State returns the current snapshot.
func (w *World) State() *model.GameState { return w.state }

// Commands returns how many commands were sent since the last call.
func (w *World) Commands() int {
	n := w.commands
	w.commands = 0
	return n
}

func (w *World) issue(msgType string, data any) bool {
	if err := w.send.Send(msgType, data); err != nil {
		slog.Warn("command not sent", "faction", w.faction, "type", msgType, "error", err)
		return false
	}
	w.commands++
	return true
}

// Directory

func (w *World) Faction(id string) (model.Faction, bool) {
	for _, f := range w.state.Factions {
		if f.ID == id {
			return f, true
		}
	}
	return model.Faction{}, false
}

func (w *World) Factions() []model.Faction { return w.state.Factions }

func (w *World) Units(faction string) []*model.Unit {
	var out []*model.Unit
	for i := range w.state.Units {
		if u := &w.state.Units[i]; u.Owner == faction {
			out = append(out, u)
		}
	}
	return out
}

func (w *World) Buildings(faction string) []*model.Building {
	var out []*model.Building
	for i := range w.state.Buildings {
		if b := &w.state.Buildings[i]; b.Owner == faction {
			out = append(out, b)
		}
	}
	return out
}

func (w *World) Unit(id model.EntityID) (*model.Unit, bool) {
	u, ok := w.units[id]
	return u, ok
}

func (w *World) Building(id model.EntityID) (*model.Building, bool) {
	b, ok := w.buildings[id]
	return b, ok
}

func (w *World) ResourceNodes() []*model.ResourceNode {
	out := make([]*model.ResourceNode, len(w.state.ResourceNodes))
	for i := range w.state.ResourceNodes {
		out[i] = &w.state.ResourceNodes[i]
	}
	return out
}

func (w *World) ResourceNode(id model.EntityID) (*model.ResourceNode, bool) {
	n, ok := w.nodes[id]
	return n, ok
}

func (w *World) Builders(building model.EntityID) []*model.Unit {
	var out []*model.Unit
	for i := range w.state.Units {
		if u := &w.state.Units[i]; u.Building == building {
			out = append(out, u)
		}
	}
	return out
}

func (w *World) Elapsed() float64 { return w.state.Elapsed }

// ProductionService

func (w *World) Produce(faction, code string, hint world.PlacementHint) world.Outcome {
	if faction != w.faction {
		return world.OutcomeRejected
	}
	cmd := ipc.ProduceCommand{Item: code, Scope: int(hint.Scope)}
	if hint.HasSpot {
		cmd.Place, cmd.X, cmd.Y = true, hint.Position.X, hint.Position.Y
	}
	if !w.issue(ipc.TypeProduce, cmd) {
		return world.OutcomeRejected
	}
	return world.OutcomeAccepted
}

// HasResources checks cost against the balance left after this state's
// reservations.
func (w *World) HasResources(cost model.Cost, faction string) bool {
	f, ok := w.Faction(faction)
	if !ok {
		return false
	}
	for res, amount := range cost {
		have := f.Resources[res]
		if faction == w.faction {
			have -= w.reserved[res]
		}
		if have < amount {
			return false
		}
	}
	return true
}

func (w *World) ReserveResources(cost model.Cost, faction string) {
	if faction != w.faction {
		return
	}
	for res, amount := range cost {
		w.reserved[res] += amount
	}
}

// PlacementService

// FindPlacement searches rings around the anchor for the nearest cell on
// buildable ground, inside the map, with footprint cells of clearance to
// every known building.
func (w *World) FindPlacement(code string, scope model.EntityID, anchor world.Anchor) (model.Point, bool) {
	origin := anchor.Position
	for r := footprint; r <= placementRadius; r++ {
		best, found := model.Point{}, false
		bestDist := 0.0
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				p := model.Point{X: origin.X + dx, Y: origin.Y + dy}
				if !w.free(p) {
					continue
				}
				if d := origin.Dist(p); !found || d < bestDist {
					best, bestDist, found = p, d, true
				}
			}
		}
		if found {
			return best, true
		}
	}
	return model.Point{}, false
}

func (w *World) free(p model.Point) bool {
	if p.X < 0 || p.Y < 0 {
		return false
	}
	if w.state.MapWidth > 0 && (p.X >= w.state.MapWidth || p.Y >= w.state.MapHeight) {
		return false
	}
	if !w.terrain.Buildable(p) {
		return false
	}
	for i := range w.state.Buildings {
		b := &w.state.Buildings[i]
		if abs(b.X-p.X) < footprint && abs(b.Y-p.Y) < footprint {
			return false
		}
	}
	for i := range w.state.ResourceNodes {
		n := &w.state.ResourceNodes[i]
		if n.X == p.X && n.Y == p.Y {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Orders

func (w *World) Attack(units []model.EntityID, target model.EntityID) bool {
	if len(units) == 0 {
		return false
	}
	return w.issue(ipc.TypeAttack, ipc.AttackCommand{ActorIDs: ids(units), TargetID: int(target)})
}

func (w *World) Move(units []model.EntityID, to model.Point) bool {
	if len(units) == 0 {
		return false
	}
	return w.issue(ipc.TypeMove, ipc.MoveCommand{ActorIDs: ids(units), X: to.X, Y: to.Y})
}

func (w *World) Collect(unit, node model.EntityID) bool {
	if _, ok := w.nodes[node]; !ok {
		return false
	}
	return w.issue(ipc.TypeHarvest, ipc.HarvestCommand{ActorID: int(unit), NodeID: int(node)})
}

// Construct sends a builder to a site, or to repair it once it stands.
func (w *World) Construct(unit, building model.EntityID) bool {
	b, ok := w.buildings[building]
	if !ok {
		return false
	}
	msgType := ipc.TypeConstruct
	if b.Built {
		msgType = ipc.TypeRepair
	}
	return w.issue(msgType, ipc.ConstructCommand{ActorID: int(unit), TargetID: int(building)})
}

func (w *World) Upgrade(faction, code string) bool {
	if faction != w.faction {
		return false
	}
	return w.issue(ipc.TypeUpgrade, ipc.UpgradeCommand{Item: code})
}

func ids(units []model.EntityID) []int {
	out := make([]int, len(units))
	for i, id := range units {
		out[i] = int(id)
	}
	return out
}

var (
	_ world.Directory         = (*World)(nil)
	_ world.ProductionService = (*World)(nil)
	_ world.PlacementService  = (*World)(nil)
	_ world.Orders            = (*World)(nil)
)

package model

import "math"

// EntityID identifies a unit, building or resource node in the game.
// Zero is never a valid ID and doubles as "no scope" for regulators.
type EntityID int

// Point is a map cell position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Cost is a resource bill keyed by resource type ("gold", "wood", ...).
type Cost map[string]int

// GameState is the snapshot the game mod sends every AI tick.
type GameState struct {
	Tick          int            `json:"tick"`
	Elapsed       float64        `json:"elapsed"` // seconds since match start
	Player        Player         `json:"player"`
	Factions      []Faction      `json:"factions"`
	Buildings     []Building     `json:"buildings"`
	Units         []Unit         `json:"units"`
	ResourceNodes []ResourceNode `json:"resourceNodes"`
	MapWidth      int            `json:"mapWidth"`
	MapHeight     int            `json:"mapHeight"`

	// Reports of what happened since the previous state that diffing
	// cannot recover.
	Cancelled []QueueItem    `json:"cancelled,omitempty"`
	Attacks   []AttackReport `json:"attacks,omitempty"`
}

// QueueItem is a production order the game dropped before it produced
// anything.
type QueueItem struct {
	Code  string   `json:"code"`
	Scope EntityID `json:"scope,omitempty"`
}

// AttackReport names a building that took fire and where the shot came
// from.
type AttackReport struct {
	Building EntityID `json:"building"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
}

// Player is the faction the sidecar controls.
type Player struct {
	Name    string `json:"name"`
	Faction string `json:"faction"`
}

// Faction is one slot in the match, including our own.
type Faction struct {
	ID            string         `json:"id"`
	Eliminated    bool           `json:"eliminated"`
	Resources     map[string]int `json:"resources"`
	Population    int            `json:"population"`
	PopulationCap int            `json:"populationCap"`
	Home          Point          `json:"home"`
}

// Affords reports whether the faction holds at least cost of every resource.
func (f Faction) Affords(cost Cost) bool {
	for res, amount := range cost {
		if f.Resources[res] < amount {
			return false
		}
	}
	return true
}

// ResourceSum adds up every resource balance.
func (f Faction) ResourceSum() int {
	n := 0
	for _, v := range f.Resources {
		n += v
	}
	return n
}

type Unit struct {
	ID         EntityID `json:"id"`
	Owner      string   `json:"owner"`
	Type       string   `json:"type"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	HP         int      `json:"hp"`
	MaxHP      int      `json:"maxHp"`
	Idle       bool     `json:"idle"`
	Collecting EntityID `json:"collecting,omitempty"` // resource node being gathered
	Building   EntityID `json:"building,omitempty"`   // construction site being worked
}

func (u *Unit) TypeName() string   { return u.Type }
func (u *Unit) EntityID() EntityID { return u.ID }
func (u *Unit) Pos() Point         { return Point{u.X, u.Y} }

type Building struct {
	ID    EntityID `json:"id"`
	Owner string   `json:"owner"`
	Type  string   `json:"type"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	HP    int      `json:"hp"`
	MaxHP int      `json:"maxHp"`
	Built bool     `json:"built"`
	Scope EntityID `json:"scope"` // territory center the building lies in
}

func (b *Building) TypeName() string   { return b.Type }
func (b *Building) EntityID() EntityID { return b.ID }
func (b *Building) Pos() Point         { return Point{b.X, b.Y} }

// Damaged reports whether the building is below full health.
func (b *Building) Damaged() bool {
	return b.MaxHP > 0 && b.HP < b.MaxHP
}

type ResourceNode struct {
	ID        EntityID `json:"id"`
	Resource  string   `json:"resource"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Capacity  int      `json:"capacity"`  // max simultaneous collectors the node supports
	Remaining int      `json:"remaining"` // amount left before depletion
	Scope     EntityID `json:"scope"`
}

func (n *ResourceNode) Pos() Point { return Point{n.X, n.Y} }

// Exploitable reports whether the node still has something to gather.
func (n *ResourceNode) Exploitable() bool { return n.Remaining > 0 }

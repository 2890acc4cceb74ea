// Package world declares the services the faction controller consumes
// from the game. The controller never computes paths, placement geometry
// or combat; it asks through these interfaces and reacts to events.
package world

import "github.com/nstehr/vimy/vimy-faction/model"

// Outcome is the result of a production attempt. Everything except
// OutcomeAccepted is a soft failure retried on the next cooldown.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeInsufficientResources
	OutcomeRequirementsUnmet
	OutcomeNoPlacement
	OutcomeAtMaximum
	OutcomeCooldown
	OutcomeSatisfied
	OutcomeRejected
	OutcomeUnknownEntity
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeInsufficientResources:
		return "insufficient-resources"
	case OutcomeRequirementsUnmet:
		return "requirements-unmet"
	case OutcomeNoPlacement:
		return "no-placement"
	case OutcomeAtMaximum:
		return "at-maximum"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeSatisfied:
		return "satisfied"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnknownEntity:
		return "unknown-entity"
	}
	return "unknown"
}

// PlacementHint tells the production service where an instance should
// appear. Units leave Position zero and let the game pick a producer.
type PlacementHint struct {
	Scope    model.EntityID
	Position model.Point
	HasSpot  bool
}

// ProductionService queues entities with the game.
type ProductionService interface {
	Produce(faction, code string, hint PlacementHint) Outcome
	HasResources(cost model.Cost, faction string) bool
	ReserveResources(cost model.Cost, faction string)
}

// Anchor is where a building should be placed around.
type Anchor struct {
	Strategy string
	Ref      model.EntityID
	Position model.Point
}

// PlacementService finds a free spot for a building around an anchor.
type PlacementService interface {
	FindPlacement(code string, scope model.EntityID, anchor Anchor) (model.Point, bool)
}

// Geometry answers spatial questions.
type Geometry interface {
	Distance(a, b model.Point) float64
	// NearestOf returns the index of the candidate closest to ref, or -1.
	NearestOf(candidates []model.Point, ref model.Point) int
}

// Directory exposes the current game state the controller may read.
type Directory interface {
	Faction(id string) (model.Faction, bool)
	Factions() []model.Faction
	Units(faction string) []*model.Unit
	Buildings(faction string) []*model.Building
	Unit(id model.EntityID) (*model.Unit, bool)
	Building(id model.EntityID) (*model.Building, bool)
	ResourceNodes() []*model.ResourceNode
	ResourceNode(id model.EntityID) (*model.ResourceNode, bool)
	// Builders returns the units currently working on a construction site.
	Builders(building model.EntityID) []*model.Unit
	Elapsed() float64
}

// Orders sends unit and building commands. A false return means the game
// refused the order; it is a soft failure.
type Orders interface {
	Attack(units []model.EntityID, target model.EntityID) bool
	Move(units []model.EntityID, to model.Point) bool
	Collect(unit model.EntityID, node model.EntityID) bool
	Construct(unit model.EntityID, building model.EntityID) bool
	Upgrade(faction, code string) bool
}

// Euclid is the default Geometry.
type Euclid struct{}

func (Euclid) Distance(a, b model.Point) float64 { return a.Dist(b) }

func (Euclid) NearestOf(candidates []model.Point, ref model.Point) int {
	best, bestDist := -1, 0.0
	for i, c := range candidates {
		d := ref.Dist(c)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

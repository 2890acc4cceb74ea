package event

import "github.com/nstehr/vimy/vimy-faction/model"

// Kind identifies the category of an event for subscription.
type Kind string

const (
	KindUnitCreated            Kind = "unit_created"
	KindUnitDestroyed          Kind = "unit_destroyed"
	KindUnitConverted          Kind = "unit_converted"
	KindUnitUpgraded           Kind = "unit_upgraded"
	KindUnitReassigned         Kind = "unit_reassigned"
	KindBuildingPlaced         Kind = "building_placed"
	KindBuildingBuilt          Kind = "building_built"
	KindBuildingDestroyed      Kind = "building_destroyed"
	KindBuildingConverted      Kind = "building_converted"
	KindBuildingUpgraded       Kind = "building_upgraded"
	KindBuildingDamaged        Kind = "building_damaged"
	KindBuildingAttacked       Kind = "building_attacked"
	KindConstructionStarted    Kind = "construction_started"
	KindConstructionStopped    Kind = "construction_stopped"
	KindCollectionStarted      Kind = "collection_started"
	KindCollectionStopped      Kind = "collection_stopped"
	KindResourceNodeDiscovered Kind = "resource_node_discovered"
	KindResourceNodeDepleted   Kind = "resource_node_depleted"
	KindProductionRequested    Kind = "production_requested"
	KindProductionCancelled    Kind = "production_cancelled"
	KindTaskLaunched           Kind = "task_launched"
	KindTaskCompleted          Kind = "task_completed"
	KindTaskCancelled          Kind = "task_cancelled"
	KindPopulationChanged      Kind = "population_changed"
	KindFactionEliminated      Kind = "faction_eliminated"
	KindCampaignPhase          Kind = "campaign_phase"
)

// Event is implemented by every payload published on the Bus.
type Event interface {
	Kind() Kind
}

type UnitCreated struct{ Unit *model.Unit }

type UnitDestroyed struct{ Unit *model.Unit }

// UnitConverted fires when a unit changes owner. Unit.Owner is already the
// new owner.
type UnitConverted struct {
	Unit *model.Unit
	From string
}

type UnitUpgraded struct {
	Faction  string
	From, To string
}

// UnitReassigned fires when a planner takes a unit away from whatever it
// was doing for another planner.
type UnitReassigned struct {
	Faction string
	UnitID  model.EntityID
	By      string
}

// BuildingPlaced fires when a construction site appears.
type BuildingPlaced struct{ Building *model.Building }

// BuildingBuilt fires when construction completes.
type BuildingBuilt struct{ Building *model.Building }

type BuildingDestroyed struct{ Building *model.Building }

type BuildingConverted struct {
	Building *model.Building
	From     string
}

type BuildingUpgraded struct {
	Building *model.Building
	From, To string
}

type BuildingDamaged struct{ Building *model.Building }

type BuildingAttacked struct {
	Building *model.Building
	Attacker model.Point
}

type ConstructionStarted struct {
	Building *model.Building
	Builder  model.EntityID
}

type ConstructionStopped struct {
	Building *model.Building
	Builder  model.EntityID
}

type CollectionStarted struct {
	Faction string
	Unit    model.EntityID
	Node    *model.ResourceNode
}

type CollectionStopped struct {
	Faction string
	Unit    model.EntityID
	Node    *model.ResourceNode
}

type ResourceNodeDiscovered struct {
	Faction string
	Node    *model.ResourceNode
}

type ResourceNodeDepleted struct{ Node *model.ResourceNode }

type ProductionRequested struct {
	Faction string
	Code    string
	Scope   model.EntityID
}

// ProductionCancelled fires when an accepted request is abandoned before
// the instance materialises.
type ProductionCancelled struct {
	Faction string
	Code    string
	Scope   model.EntityID
}

type TaskLaunched struct {
	Faction string
	Task    string
	Target  model.EntityID
}

type TaskCompleted struct {
	Faction string
	Task    string
	Target  model.EntityID
}

type TaskCancelled struct {
	Faction string
	Task    string
	Target  model.EntityID
	Reason  string
}

type PopulationChanged struct {
	Faction    string
	Population int
	Cap        int
}

type FactionEliminated struct{ Faction string }

type CampaignPhase struct {
	Faction       string
	Campaign      string
	Phase         string
	TargetFaction string
	Target        model.EntityID
}

func (UnitCreated) Kind() Kind            { return KindUnitCreated }
func (UnitDestroyed) Kind() Kind          { return KindUnitDestroyed }
func (UnitConverted) Kind() Kind          { return KindUnitConverted }
func (UnitUpgraded) Kind() Kind           { return KindUnitUpgraded }
func (UnitReassigned) Kind() Kind         { return KindUnitReassigned }
func (BuildingPlaced) Kind() Kind         { return KindBuildingPlaced }
func (BuildingBuilt) Kind() Kind          { return KindBuildingBuilt }
func (BuildingDestroyed) Kind() Kind      { return KindBuildingDestroyed }
func (BuildingConverted) Kind() Kind      { return KindBuildingConverted }
func (BuildingUpgraded) Kind() Kind       { return KindBuildingUpgraded }
func (BuildingDamaged) Kind() Kind        { return KindBuildingDamaged }
func (BuildingAttacked) Kind() Kind       { return KindBuildingAttacked }
func (ConstructionStarted) Kind() Kind    { return KindConstructionStarted }
func (ConstructionStopped) Kind() Kind    { return KindConstructionStopped }
func (CollectionStarted) Kind() Kind      { return KindCollectionStarted }
func (CollectionStopped) Kind() Kind      { return KindCollectionStopped }
func (ResourceNodeDiscovered) Kind() Kind { return KindResourceNodeDiscovered }
func (ResourceNodeDepleted) Kind() Kind   { return KindResourceNodeDepleted }
func (ProductionRequested) Kind() Kind    { return KindProductionRequested }
func (ProductionCancelled) Kind() Kind    { return KindProductionCancelled }
func (TaskLaunched) Kind() Kind           { return KindTaskLaunched }
func (TaskCompleted) Kind() Kind          { return KindTaskCompleted }
func (TaskCancelled) Kind() Kind          { return KindTaskCancelled }
func (PopulationChanged) Kind() Kind      { return KindPopulationChanged }
func (FactionEliminated) Kind() Kind      { return KindFactionEliminated }
func (CampaignPhase) Kind() Kind          { return KindCampaignPhase }

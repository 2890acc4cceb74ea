package ipc

// Command type constants. They must stay in sync with the C# CommandExecutor.
const (
	TypeProduce   = "produce"
	TypeAttack    = "attack"
	TypeMove      = "move"
	TypeHarvest   = "harvest"
	TypeConstruct = "construct"
	TypeRepair    = "repair_building"
	TypeUpgrade   = "upgrade"
)

// ProduceCommand queues one entity. Buildings carry the spot the sidecar
// chose; units leave Place unset and the game picks a producer.
type ProduceCommand struct {
	Item  string `json:"item"`
	Scope int    `json:"scope,omitempty"`
	Place bool   `json:"place,omitempty"`
	X     int    `json:"x,omitempty"`
	Y     int    `json:"y,omitempty"`
}

type AttackCommand struct {
	ActorIDs []int `json:"actor_ids"`
	TargetID int   `json:"target_id"`
}

type MoveCommand struct {
	ActorIDs []int `json:"actor_ids"`
	X        int   `json:"x"`
	Y        int   `json:"y"`
}

type HarvestCommand struct {
	ActorID int `json:"actor_id"`
	NodeID  int `json:"node_id"`
}

// ConstructCommand sends a builder to a site. The same payload is used
// for repair_building.
type ConstructCommand struct {
	ActorID  int `json:"actor_id"`
	TargetID int `json:"target_id"`
}

// UpgradeCommand upgrades every owned entity of Item in place.
type UpgradeCommand struct {
	Item string `json:"item"`
}

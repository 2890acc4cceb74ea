package ipc

// These constants must stay in sync with the C# MessageType enum in the game mod.
const (
	TypeHello     = "hello"
	TypeAck       = "ack"
	TypeGameState = "game_state"
	TypeGoodbye   = "goodbye"
)

// HelloMessage opens a session. Profile selects the AI profile by name;
// empty means the sidecar default. Match groups the sessions of one game
// in the journal; the sidecar makes one up when it is absent.
type HelloMessage struct {
	Player  string       `json:"player"`
	Faction string       `json:"faction"`
	Profile string       `json:"profile,omitempty"`
	Match   string       `json:"match,omitempty"`
	Terrain *TerrainData `json:"terrain,omitempty"`
}

// TerrainData carries the coarse terrain grid from the C# mod.
// Optional: without it every in-bounds cell counts as buildable ground.
type TerrainData struct {
	Cols  int   `json:"cols"`
	Rows  int   `json:"rows"`
	CellW int   `json:"cellW"`
	CellH int   `json:"cellH"`
	Grid  []int `json:"grid"`
}

// AckMessage answers hello and every game state. Commands is how many
// commands the sidecar issued while handling the message.
type AckMessage struct {
	Status   string `json:"status"`
	Commands int    `json:"commands,omitempty"`
}

const (
	StatusOK       = "ok"
	StatusDisabled = "disabled" // the faction's AI failed to start
)

// GoodbyeMessage ends a session, typically when the match is over.
type GoodbyeMessage struct {
	Reason string `json:"reason,omitempty"`
}

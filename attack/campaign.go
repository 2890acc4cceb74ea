package attack

import (
	"github.com/google/uuid"

	"github.com/nstehr/vimy/vimy-faction/model"
)

// Phase is the state of the faction's attack campaign.
type Phase int

const (
	PhaseIdle Phase = iota
	// PhaseSelectingTarget holds a chosen enemy faction while launch
	// conditions are awaited.
	PhaseSelectingTarget
	PhaseLaunching
	PhaseEngaging
	PhaseRetreating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelectingTarget:
		return "selecting-target"
	case PhaseLaunching:
		return "launching"
	case PhaseEngaging:
		return "engaging"
	case PhaseRetreating:
		return "retreating"
	}
	return "unknown"
}

// Campaign is the director's single attack. Units is a non-owning roster
// pruned from lifecycle events.
type Campaign struct {
	ID            uuid.UUID
	TargetFaction string
	Target        model.EntityID
	TargetIsUnit  bool
	Units         []model.EntityID
	Phase         Phase
	// LastPosition is where the force last attacked; follow-up targets are
	// chosen nearest to it.
	LastPosition model.Point
}

func (c *Campaign) dropUnit(id model.EntityID) bool {
	for i, u := range c.Units {
		if u == id {
			c.Units = append(c.Units[:i], c.Units[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Campaign) reset() {
	c.ID = uuid.Nil
	c.TargetFaction = ""
	c.Target = 0
	c.TargetIsUnit = false
	c.Units = nil
	c.Phase = PhaseIdle
}

package regulator

import (
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

type (
	UnitRegulator     = Regulator[*model.Unit]
	BuildingRegulator = Regulator[*model.Building]
)

// Env carries the shared pieces every regulator of a faction is built with.
type Env struct {
	Profile *profile.Profile
	Src     *sample.Source
	Ledger  *CategoryLedger
	Owner   planner.Activator
	// PopCap reports the faction's current population cap.
	PopCap func() int
}

// NewUnitRegulator builds the regulator for a unit config. Its maximum
// follows the population cap through the configured ratio.
func NewUnitRegulator(env Env, cfg profile.RegulatorConfig) (*UnitRegulator, error) {
	ent, err := lookup(env.Profile, cfg.Code, profile.KindUnit)
	if err != nil {
		return nil, err
	}
	return New[*model.Unit](Config{
		Code:       ent.Code,
		Category:   ent.Category,
		Min:        cfg.Min.Sample(env.Src),
		Cap:        cfg.Max.Sample(env.Src),
		MaxPending: cfg.MaxPending,
		Policy:     PopulationRatio{Ratio: cfg.Ratio, Src: env.Src, PopCap: env.PopCap},
		Ledger:     env.Ledger,
		Owner:      env.Owner,
	}), nil
}

// NewBuildingRegulator builds a demand-driven building regulator. hook may
// be nil.
func NewBuildingRegulator(env Env, cfg profile.RegulatorConfig, hook func() bool) (*BuildingRegulator, error) {
	ent, err := lookup(env.Profile, cfg.Code, profile.KindBuilding)
	if err != nil {
		return nil, err
	}
	return New[*model.Building](Config{
		Code:               ent.Code,
		Category:           ent.Category,
		Min:                cfg.Min.Sample(env.Src),
		Cap:                cfg.Max.Sample(env.Src),
		MaxPending:         cfg.MaxPending,
		Policy:             Demand{},
		Ledger:             env.Ledger,
		Owner:              env.Owner,
		OnSuccessfulRemove: hook,
	}), nil
}

func lookup(p *profile.Profile, code string, kind profile.EntityKind) (*profile.Entity, error) {
	if p == nil {
		return nil, &profile.ConfigError{Code: code, Reason: "no profile", Err: profile.ErrUnknownEntity}
	}
	ent, ok := p.Entity(code)
	if !ok {
		return nil, &profile.ConfigError{Profile: p.Name, Code: code, Reason: "no catalog entry", Err: profile.ErrUnknownEntity}
	}
	if ent.Kind != kind {
		return nil, &profile.ConfigError{Profile: p.Name, Code: code, Reason: "catalog kind is " + string(ent.Kind)}
	}
	return ent, nil
}

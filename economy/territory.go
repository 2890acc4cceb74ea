package economy

import (
	"log/slog"
	"strings"

	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/production"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/regulator"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/world"
)

// Territory founds new centers next to unclaimed resource nodes while the
// faction is rich enough and below its sampled center target.
type Territory struct {
	planner.Activation

	ctx   *planner.Context
	log   *slog.Logger
	cfg   profile.TerritoryConfig
	timer *sample.Timer
}

func NewTerritory() *Territory { return &Territory{} }

func (t *Territory) Kind() planner.Kind { return planner.KindTerritory }

func (t *Territory) Init(ctx *planner.Context) error {
	t.ctx = ctx
	t.log = ctx.Logger(t.Kind())
	t.cfg = ctx.Profile.Territory
	t.timer = sample.NewTimer(t.cfg.Interval, ctx.Rand)
	if t.cfg.Enabled {
		t.Activate()
	}
	return nil
}

func (t *Territory) Close() {}

func (t *Territory) Tick(dt float64) {
	if !t.cfg.Enabled {
		t.Deactivate()
		return
	}
	if t.timer.Tick(dt) {
		out := t.Expand()
		t.log.Debug("expansion check", "outcome", out.String())
	}
}

// Expand requests one center if expansion is due. It returns
// OutcomeSatisfied when the center target is met and the production
// outcome otherwise.
func (t *Territory) Expand() world.Outcome {
	bc, ok := planner.Lookup[*production.BuildingCreator](t.ctx.Registry, planner.KindBuildingCreator)
	if !ok {
		return world.OutcomeRejected
	}
	code, reg, ok := t.centerRegulator(bc)
	if !ok {
		return world.OutcomeUnknownEntity
	}
	if reg.Pending() > 0 {
		return world.OutcomeCooldown
	}
	centers := 0
	for _, id := range bc.Scopes() {
		if id != 0 {
			centers++
		}
	}
	if centers >= t.cfg.Centers.Sample(t.ctx.Rand) {
		return world.OutcomeSatisfied
	}
	if !t.thresholdsMet() {
		return world.OutcomeInsufficientResources
	}
	node := t.site()
	if node == nil {
		return world.OutcomeNoPlacement
	}

	raised := false
	if reg.Current()+reg.Pending() >= reg.Max() {
		reg.IncrementMinTarget()
		raised = true
	}
	anchor := world.Anchor{Strategy: profile.AnchorResource, Ref: node.ID, Position: node.Pos()}
	out := bc.RequestProductionAt(code, anchor, true)
	if out != world.OutcomeAccepted {
		if raised {
			reg.SetMin(reg.Min() - 1)
		}
		return out
	}
	t.log.Info("expansion requested", "center", code, "node", node.ID, "centers", centers)
	return out
}

// centerRegulator finds the capital's regulator for the configured center,
// following the catalog's upgrade chain once the original code has been
// upgraded away.
func (t *Territory) centerRegulator(bc *production.BuildingCreator) (string, *regulator.BuildingRegulator, bool) {
	seen := make(map[string]bool)
	for code := t.cfg.Center; code != "" && !seen[strings.ToLower(code)]; {
		seen[strings.ToLower(code)] = true
		if reg, ok := bc.Regulator(bc.Capital(), code); ok {
			return code, reg, true
		}
		ent, ok := t.ctx.Profile.Entity(code)
		if !ok {
			break
		}
		code = ent.UpgradesTo
	}
	return "", nil, false
}

func (t *Territory) thresholdsMet() bool {
	f, ok := t.ctx.Self()
	if !ok {
		return false
	}
	for _, th := range t.cfg.MinResources {
		if float64(f.Resources[th.Resource]) < th.Amount.Sample(t.ctx.Rand) {
			return false
		}
	}
	return true
}

// site returns the exploitable node of the expansion resource outside
// every territory that lies closest to home.
func (t *Territory) site() *model.ResourceNode {
	home := model.Point{}
	if f, ok := t.ctx.Self(); ok {
		home = f.Home
	}
	var (
		nodes  []*model.ResourceNode
		points []model.Point
	)
	for _, n := range t.ctx.Directory.ResourceNodes() {
		if n.Scope != 0 || !n.Exploitable() {
			continue
		}
		if t.cfg.Resource != "" && !strings.EqualFold(n.Resource, t.cfg.Resource) {
			continue
		}
		nodes = append(nodes, n)
		points = append(points, n.Pos())
	}
	i := t.ctx.Geometry.NearestOf(points, home)
	if i < 0 {
		return nil
	}
	return nodes[i]
}

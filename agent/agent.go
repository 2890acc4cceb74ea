// Package agent runs one faction controller per game connection: it
// bootstraps the planners from a profile on the first game state, turns
// every following state into lifecycle events and ticks the controller.
package agent

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nstehr/vimy/vimy-faction/ipc"
	"github.com/nstehr/vimy/vimy-faction/journal"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/profile"
)

// Options configure a session.
type Options struct {
	Profiles       *profile.Set
	DefaultProfile string
	Journal        *journal.Store // nil disables journaling
}

// Agent owns the decision-making for a single player session.
type Agent struct {
	send    ipc.Sender
	opts    Options
	Player  string
	Faction string
	Match   string
	profile *profile.Profile
	terrain *model.TerrainGrid

	world    *World
	ctrl     *Controller
	recorder *journal.Recorder
	prev     *model.GameState
	failed   error
	log      *slog.Logger
}

func New(send ipc.Sender, opts Options) *Agent {
	return &Agent{send: send, opts: opts, log: slog.Default()}
}

// Controller returns the running controller, nil before the first state
// or after a failed bootstrap.
func (a *Agent) Controller() *Controller { return a.ctrl }

// HandleHello completes the handshake so the mod knows the bridge is ready.
func (a *Agent) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := env.Decode(&hello); err != nil {
		return nil, err
	}

	name := hello.Profile
	if name == "" {
		name = a.opts.DefaultProfile
	}
	p, err := a.opts.Profiles.Get(name)
	if err != nil {
		return nil, err
	}

	a.Player = hello.Player
	a.Faction = hello.Faction
	a.Match = hello.Match
	if a.Match == "" {
		a.Match = uuid.NewString()
	}
	a.profile = p
	if t := hello.Terrain; t != nil {
		grid, ok := model.NewTerrainGrid(t.Cols, t.Rows, t.CellW, t.CellH, t.Grid)
		if !ok {
			slog.Warn("terrain grid ignored", "player", a.Player, "cols", t.Cols, "rows", t.Rows, "cells", len(t.Grid))
		}
		a.terrain = grid
	}
	a.log = slog.Default().With("player", a.Player, "faction", a.Faction, "match", a.Match)
	a.log.Info("player identified", "profile", p.Name, "terrain", a.terrain != nil)

	return ack(ipc.StatusOK, 0)
}

func (a *Agent) HandleGameState(env ipc.Envelope) (*ipc.Envelope, error) {
	if a.profile == nil {
		return nil, errors.New("game state before hello")
	}
	var gs model.GameState
	if err := env.Decode(&gs); err != nil {
		return nil, err
	}
	if a.failed != nil {
		return ack(ipc.StatusDisabled, 0)
	}

	if a.ctrl == nil {
		if err := a.start(&gs); err != nil {
			a.failed = err
			a.log.Error("faction AI disabled", "error", err)
			return ack(ipc.StatusDisabled, 0)
		}
		return ack(ipc.StatusOK, a.world.Commands())
	}

	a.Step(&gs)
	return ack(ipc.StatusOK, a.world.Commands())
}

// start bootstraps the controller against the first state, then runs the
// first tick.
func (a *Agent) start(gs *model.GameState) error {
	a.world = NewWorld(a.Faction, a.send, a.terrain)
	a.world.Update(gs)
	ctrl, err := Bootstrap(a.Faction, a.profile, Services{
		Directory:  a.world,
		Production: a.world,
		Placement:  a.world,
		Orders:     a.world,
	}, a.log)
	if err != nil {
		return err
	}
	a.ctrl = ctrl
	if a.opts.Journal != nil {
		a.recorder = journal.NewRecorder(a.opts.Journal, ctrl.Bus(), a.Match, a.Faction, a.world.Elapsed)
	}
	a.prev = gs
	a.ctrl.Tick(0)
	a.flush()
	return nil
}

// Step applies a new state: the directory is swapped first, the diff is
// published in order, then the controller ticks by the elapsed game time.
func (a *Agent) Step(gs *model.GameState) {
	prev := a.prev
	a.world.Update(gs)
	events := detectEvents(a.Faction, prev, gs)
	for _, ev := range events {
		a.ctrl.Bus().Publish(ev)
	}
	a.prev = gs

	dt := max(0, gs.Elapsed-prev.Elapsed)
	a.ctrl.Tick(dt)
	a.flush()

	if len(events) > 0 {
		a.log.Debug("game state applied", "tick", gs.Tick, "events", len(events), "dt", dt,
			"active", a.ctrl.Orchestrator().Active())
	}
	if eliminated(gs, a.Faction) && !eliminated(prev, a.Faction) {
		a.log.Info("faction eliminated", "tick", gs.Tick)
	}
}

func (a *Agent) flush() {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Flush(); err != nil {
		a.log.Warn("journal flush failed", "pending", a.recorder.Pending(), "error", err)
	}
}

// HandleGoodbye ends the session. The returned ipc.ErrStop tells the read
// loop to close the connection.
func (a *Agent) HandleGoodbye(env ipc.Envelope) (*ipc.Envelope, error) {
	var bye ipc.GoodbyeMessage
	if err := env.Decode(&bye); err != nil {
		return nil, err
	}
	a.log.Info("session ended by game", "reason", bye.Reason)
	a.Close()
	return nil, ipc.ErrStop
}

// Close stops the controller and flushes the journal. It is safe to call
// more than once.
func (a *Agent) Close() {
	if a.recorder != nil {
		a.recorder.Close()
		a.recorder = nil
	}
	if a.ctrl != nil {
		a.ctrl.Close()
		a.ctrl = nil
		a.failed = errors.New("session closed")
	}
}

func eliminated(gs *model.GameState, faction string) bool {
	for _, f := range gs.Factions {
		if f.ID == faction {
			return f.Eliminated
		}
	}
	return false
}

func ack(status string, commands int) (*ipc.Envelope, error) {
	env, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: status, Commands: commands})
	if err != nil {
		return nil, fmt.Errorf("ack: %w", err)
	}
	return &env, nil
}

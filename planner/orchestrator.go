package planner

import (
	"fmt"
	"log/slog"
)

// Orchestrator owns every planner of one faction, keyed by kind. It
// initializes them once and then advances only the active ones each tick.
type Orchestrator struct {
	planners map[Kind]Planner
	order    []Planner
	log      *slog.Logger
}

func NewOrchestrator(log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{planners: make(map[Kind]Planner), log: log}
}

// Register adds p. Ticks follow registration order.
func (o *Orchestrator) Register(p Planner) error {
	if _, dup := o.planners[p.Kind()]; dup {
		return fmt.Errorf("planner %s registered twice", p.Kind())
	}
	o.planners[p.Kind()] = p
	o.order = append(o.order, p)
	return nil
}

// Get returns the planner registered for kind.
func (o *Orchestrator) Get(kind Kind) (Planner, bool) {
	p, ok := o.planners[kind]
	return p, ok
}

// Lookup returns the planner for kind as its concrete type.
func Lookup[T Planner](o *Orchestrator, kind Kind) (T, bool) {
	var zero T
	if o == nil {
		return zero, false
	}
	p, ok := o.planners[kind]
	if !ok {
		return zero, false
	}
	t, ok := p.(T)
	return t, ok
}

// Init hands ctx to every planner in registration order. The first error
// aborts, and planners initialized so far are closed again.
func (o *Orchestrator) Init(ctx *Context) error {
	ctx.Registry = o
	for i, p := range o.order {
		if err := p.Init(ctx); err != nil {
			for _, done := range o.order[:i] {
				done.Close()
			}
			return fmt.Errorf("init %s: %w", p.Kind(), err)
		}
	}
	o.log.Info("faction planners initialized", "faction", ctx.Faction, "count", len(o.order))
	return nil
}

// Tick advances every active planner by dt seconds.
func (o *Orchestrator) Tick(dt float64) {
	for _, p := range o.order {
		if p.IsActive() {
			p.Tick(dt)
		}
	}
}

// Active lists the kinds currently active, in registration order.
func (o *Orchestrator) Active() []Kind {
	var out []Kind
	for _, p := range o.order {
		if p.IsActive() {
			out = append(out, p.Kind())
		}
	}
	return out
}

// Close tears down every planner.
func (o *Orchestrator) Close() {
	for _, p := range o.order {
		p.Deactivate()
		p.Close()
	}
}

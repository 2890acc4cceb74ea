// Package tasks holds deferred maintenance work in priority levels. Work
// ages toward level 0 on the promotion timer and level 0 is executed,
// forced, on the drain timer.
package tasks

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

// Kind names the planner concern that executes an entry.
type Kind string

const (
	KindConstruct Kind = "construct"
	KindCollect   Kind = "collect"
)

// Result is what an executor reports for one entry.
type Result int

const (
	// ResultDone means the work was dispatched; the entry leaves the queue.
	ResultDone Result = iota
	// ResultFailed means nothing could be done right now; the entry stays
	// in level 0 until it runs out of attempts.
	ResultFailed
	// ResultStale means the work no longer applies, e.g. the target died or
	// was finished some other way. The entry is dropped.
	ResultStale
)

func (r Result) String() string {
	switch r {
	case ResultDone:
		return "done"
	case ResultFailed:
		return "failed"
	case ResultStale:
		return "stale"
	}
	return "unknown"
}

// Entry is one queued work item.
type Entry struct {
	Kind     Kind
	Target   model.EntityID
	Resource string
	Enqueued float64
	Attempts int
}

// Executor carries out entries of one kind. forced asks the executor to
// skip the gating it would normally apply to its own periodic work.
type Executor interface {
	Execute(e Entry, forced bool) Result
}

type ExecutorFunc func(e Entry, forced bool) Result

func (f ExecutorFunc) Execute(e Entry, forced bool) Result { return f(e, forced) }

// Scheduler is the task planner.
type Scheduler struct {
	planner.Activation

	ctx         *planner.Context
	log         *slog.Logger
	levels      [][]Entry
	promotion   *sample.Timer
	drain       *sample.Timer
	maxAttempts int
	executors   map[Kind]Executor
}

func NewScheduler() *Scheduler {
	return &Scheduler{executors: make(map[Kind]Executor)}
}

func (s *Scheduler) Kind() planner.Kind { return planner.KindTasks }

func (s *Scheduler) Init(ctx *planner.Context) error {
	cfg := ctx.Profile.Tasks
	n := cfg.Levels
	if n <= 0 {
		n = 1
	}
	s.ctx = ctx
	s.log = ctx.Logger(s.Kind())
	s.levels = make([][]Entry, n)
	s.promotion = sample.NewTimer(cfg.Promotion, ctx.Rand)
	s.drain = sample.NewTimer(cfg.Drain, ctx.Rand)
	s.maxAttempts = cfg.MaxAttempts
	if s.maxAttempts <= 0 {
		s.maxAttempts = 1
	}
	return nil
}

func (s *Scheduler) Close() {}

// Register installs the executor for kind, replacing any earlier one.
func (s *Scheduler) Register(kind Kind, ex Executor) {
	s.executors[kind] = ex
}

// AddTask queues e at priority, clamped into the configured levels, and
// wakes the scheduler.
func (s *Scheduler) AddTask(e Entry, priority int) {
	priority = max(0, min(priority, len(s.levels)-1))
	e.Enqueued = s.ctx.Directory.Elapsed()
	s.levels[priority] = append(s.levels[priority], e)
	s.log.Debug("task queued", "kind", e.Kind, "target", e.Target, "level", priority)
	s.Activate()
}

// Contains reports whether an entry for kind and target is queued at any
// level.
func (s *Scheduler) Contains(kind Kind, target model.EntityID) bool {
	for _, level := range s.levels {
		for _, e := range level {
			if e.Kind == kind && e.Target == target {
				return true
			}
		}
	}
	return false
}

// Len counts queued entries over every level.
func (s *Scheduler) Len() int {
	n := 0
	for _, level := range s.levels {
		n += len(level)
	}
	return n
}

// Level returns a copy of the entries at level i.
func (s *Scheduler) Level(i int) []Entry {
	if i < 0 || i >= len(s.levels) {
		return nil
	}
	return append([]Entry(nil), s.levels[i]...)
}

func (s *Scheduler) Levels() int { return len(s.levels) }

func (s *Scheduler) Tick(dt float64) {
	if s.Len() == 0 {
		s.Deactivate()
		return
	}
	if s.promotion.Tick(dt) {
		s.Promote()
	}
	if s.drain.Tick(dt) {
		s.Drain()
	}
	if s.Len() == 0 {
		s.Deactivate()
	}
}

// Promote moves every level one step toward level 0, preserving order.
// Levels are walked upward so an entry advances at most one level per call.
func (s *Scheduler) Promote() {
	for i := 1; i < len(s.levels); i++ {
		if len(s.levels[i]) == 0 {
			continue
		}
		s.levels[i-1] = append(s.levels[i-1], s.levels[i]...)
		s.levels[i] = nil
	}
}

// Drain executes every level-0 entry in insertion order.
func (s *Scheduler) Drain() {
	batch := s.levels[0]
	s.levels[0] = nil
	var kept []Entry
	for _, e := range batch {
		ex, ok := s.executors[e.Kind]
		if !ok {
			s.log.Warn("task dropped, no executor", "kind", e.Kind, "target", e.Target)
			s.publishCancelled(e, "no executor")
			continue
		}
		s.ctx.Bus.Publish(event.TaskLaunched{Faction: s.ctx.Faction, Task: string(e.Kind), Target: e.Target})
		switch r := ex.Execute(e, true); r {
		case ResultDone:
			s.ctx.Bus.Publish(event.TaskCompleted{Faction: s.ctx.Faction, Task: string(e.Kind), Target: e.Target})
		case ResultStale:
			s.log.Debug("stale task dropped", "kind", e.Kind, "target", e.Target)
			s.publishCancelled(e, r.String())
		default:
			e.Attempts++
			if e.Attempts >= s.maxAttempts {
				s.log.Warn("task abandoned", "kind", e.Kind, "target", e.Target, "attempts", e.Attempts)
				s.publishCancelled(e, "attempts exhausted")
				continue
			}
			kept = append(kept, e)
		}
	}
	// Entries queued at level 0 by executors during the drain go after
	// the retried ones.
	s.levels[0] = append(kept, s.levels[0]...)
}

func (s *Scheduler) publishCancelled(e Entry, reason string) {
	s.ctx.Bus.Publish(event.TaskCancelled{Faction: s.ctx.Faction, Task: string(e.Kind), Target: e.Target, Reason: reason})
}

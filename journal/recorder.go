package journal

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-faction/event"
)

// Recorder buffers the decision events of one faction and writes them to
// a Store on Flush.
type Recorder struct {
	store   *Store
	match   string
	faction string
	clock   func() float64
	events  *event.Group
	pending []Entry
}

// NewRecorder subscribes to bus for faction. clock reports the match time
// stamped on each entry.
func NewRecorder(store *Store, bus *event.Bus, match, faction string, clock func() float64) *Recorder {
	r := &Recorder{store: store, match: match, faction: faction, clock: clock, events: event.NewGroup(bus)}

	r.events.On(event.KindProductionRequested, func(ev event.Event) {
		e := ev.(event.ProductionRequested)
		if e.Faction == faction {
			r.add(string(e.Kind()), e.Code, int64(e.Scope), "")
		}
	})
	r.events.On(event.KindProductionCancelled, func(ev event.Event) {
		e := ev.(event.ProductionCancelled)
		if e.Faction == faction {
			r.add(string(e.Kind()), e.Code, int64(e.Scope), "")
		}
	})
	r.events.On(event.KindTaskLaunched, func(ev event.Event) {
		e := ev.(event.TaskLaunched)
		if e.Faction == faction {
			r.add(string(e.Kind()), e.Task, int64(e.Target), "")
		}
	})
	r.events.On(event.KindTaskCompleted, func(ev event.Event) {
		e := ev.(event.TaskCompleted)
		if e.Faction == faction {
			r.add(string(e.Kind()), e.Task, int64(e.Target), "")
		}
	})
	r.events.On(event.KindTaskCancelled, func(ev event.Event) {
		e := ev.(event.TaskCancelled)
		if e.Faction == faction {
			r.add(string(e.Kind()), e.Task, int64(e.Target), e.Reason)
		}
	})
	r.events.On(event.KindCampaignPhase, func(ev event.Event) {
		e := ev.(event.CampaignPhase)
		if e.Faction == faction {
			r.add(string(e.Kind()), e.Phase, int64(e.Target), e.TargetFaction+" "+e.Campaign)
		}
	})
	r.events.On(event.KindFactionEliminated, func(ev event.Event) {
		e := ev.(event.FactionEliminated)
		r.add(string(e.Kind()), e.Faction, 0, "")
	})
	return r
}

func (r *Recorder) add(kind, subject string, target int64, detail string) {
	r.pending = append(r.pending, Entry{
		Match:   r.match,
		Faction: r.faction,
		Elapsed: r.clock(),
		Kind:    kind,
		Subject: subject,
		Target:  target,
		Detail:  detail,
	})
}

// Pending returns how many entries await Flush.
func (r *Recorder) Pending() int { return len(r.pending) }

// Flush writes the buffered entries. On error they stay buffered for the
// next attempt.
func (r *Recorder) Flush() error {
	if err := r.store.Append(r.pending); err != nil {
		return err
	}
	r.pending = r.pending[:0]
	return nil
}

// Close flushes what is left and detaches from the bus.
func (r *Recorder) Close() {
	r.events.Close()
	if err := r.Flush(); err != nil {
		slog.Warn("journal flush failed", "faction", r.faction, "error", err)
	}
}

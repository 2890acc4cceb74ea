// Package event is the per-simulation lifecycle event bus. Publishing is
// synchronous: every subscriber of an event's kind runs before Publish
// returns, in the order the subscriptions were made.
package event

import "sync"

// Handler receives one published event. Handlers type-switch on the
// concrete event they subscribed to.
type Handler func(Event)

// Subscription is the handle returned by Subscribe; pass it to
// Unsubscribe to detach the handler.
type Subscription struct {
	kind Kind
	id   uint64
}

type entry struct {
	id uint64
	fn Handler
}

// Bus fans events out to subscribers. The zero value is not usable; call
// NewBus. A Bus belongs to one simulation and is never shared across
// matches.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Kind][]entry
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]entry)}
}

// Subscribe registers fn for kind.
func (b *Bus) Subscribe(kind Kind, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[kind] = append(b.subs[kind], entry{id: b.nextID, fn: fn})
	return Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe detaches a handler. Unknown or already removed
// subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.kind]
	for i, e := range list {
		if e.id == s.id {
			b.subs[s.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to the handlers subscribed at the moment of the
// call. Handlers may subscribe or unsubscribe while being invoked; such
// changes take effect from the next Publish.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	list := b.subs[ev.Kind()]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, e := range snapshot {
		e.fn(ev)
	}
}

// Subscribers returns how many handlers are registered for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}

// Group collects subscriptions owned by one component so they can be
// released together on teardown.
type Group struct {
	bus  *Bus
	subs []Subscription
}

func NewGroup(bus *Bus) *Group {
	return &Group{bus: bus}
}

func (g *Group) On(kind Kind, fn Handler) {
	g.subs = append(g.subs, g.bus.Subscribe(kind, fn))
}

// Close unsubscribes everything registered through the group.
func (g *Group) Close() {
	for _, s := range g.subs {
		g.bus.Unsubscribe(s)
	}
	g.subs = nil
}

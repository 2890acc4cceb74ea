// Package regulator tracks how many live and pending instances of each
// entity type a faction has, against randomized min/max supply targets.
// Counts are caches maintained from lifecycle events, not ground truth.
package regulator

import (
	"sort"

	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/planner"
)

// Instance is what a regulator tracks: *model.Unit or *model.Building.
type Instance interface {
	EntityID() model.EntityID
	TypeName() string
}

// Policy derives the effective maximum of a regulator. Units scale it with
// the population cap; buildings use the configured cap as is.
type Policy interface {
	MaxAmount(min, cap int) int
}

// Config is everything a Regulator needs at construction.
type Config struct {
	Code       string
	Category   string
	Min        int
	Cap        int
	MaxPending int
	Policy     Policy
	Ledger     *CategoryLedger
	// Owner is re-activated when a removal frees supply.
	Owner planner.Activator
	// OnSuccessfulRemove overrides the re-activation after a removal;
	// returning false suppresses it.
	OnSuccessfulRemove func() bool
}

// Regulator is the supply counter for one entity code.
type Regulator[T Instance] struct {
	code       string
	category   string
	min        int
	cap        int
	maxPending int
	current    int
	pending    int
	tracked    map[model.EntityID]T
	policy     Policy
	ledger     *CategoryLedger
	owner      planner.Activator
	onRemove   func() bool
}

func New[T Instance](cfg Config) *Regulator[T] {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 1
	}
	if cfg.Min < 0 {
		cfg.Min = 0
	}
	if cfg.Cap < cfg.Min {
		cfg.Cap = cfg.Min
	}
	if cfg.Policy == nil {
		cfg.Policy = Demand{}
	}
	return &Regulator[T]{
		code:       cfg.Code,
		category:   cfg.Category,
		min:        cfg.Min,
		cap:        cfg.Cap,
		maxPending: cfg.MaxPending,
		tracked:    make(map[model.EntityID]T),
		policy:     cfg.Policy,
		ledger:     cfg.Ledger,
		owner:      cfg.Owner,
		onRemove:   cfg.OnSuccessfulRemove,
	}
}

func (r *Regulator[T]) Code() string     { return r.code }
func (r *Regulator[T]) Category() string { return r.category }
func (r *Regulator[T]) Min() int         { return r.min }
func (r *Regulator[T]) Current() int     { return r.current }
func (r *Regulator[T]) Pending() int     { return r.pending }
func (r *Regulator[T]) MaxPending() int  { return r.maxPending }

// Max is the effective maximum right now.
func (r *Regulator[T]) Max() int { return r.policy.MaxAmount(r.min, r.cap) }

// HasReachedMax reports whether no further production should be queued:
// the live count is at the maximum, the category limit is hit, or too many
// requests are already in flight.
func (r *Regulator[T]) HasReachedMax() bool {
	return r.current >= r.Max() || r.ledger.Reached(r.category) || r.pending >= r.maxPending
}

func (r *Regulator[T]) HasReachedMin() bool { return r.current >= r.min }

// Tracks reports whether the instance with id is counted.
func (r *Regulator[T]) Tracks(id model.EntityID) bool {
	_, ok := r.tracked[id]
	return ok
}

// Instances returns the tracked instances ordered by ID.
func (r *Regulator[T]) Instances() []T {
	out := make([]T, 0, len(r.tracked))
	for _, inst := range r.tracked {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

// AddExisting starts tracking an instance that appeared without a request
// of ours (initial entities, conversions). Already tracked instances are
// ignored.
func (r *Regulator[T]) AddExisting(inst T) bool {
	if r.Tracks(inst.EntityID()) {
		return false
	}
	r.tracked[inst.EntityID()] = inst
	r.current++
	r.ledger.add(r.category, 1)
	return true
}

// AddPending records an accepted production request. It is refused once
// the regulator has reached its maximum.
func (r *Regulator[T]) AddPending() bool {
	if r.HasReachedMax() {
		return false
	}
	r.pending++
	r.ledger.add(r.category, 1)
	return true
}

// Commit moves one pending request to the tracked instance that realized
// it. Without a pending request it behaves like AddExisting.
func (r *Regulator[T]) Commit(inst T) bool {
	if r.Tracks(inst.EntityID()) {
		return false
	}
	if r.pending > 0 {
		r.pending--
		r.ledger.add(r.category, -1)
	}
	return r.AddExisting(inst)
}

// Remove drops a tracked instance, or, when the instance was never
// tracked, abandons one pending request instead. Reports whether any
// count changed.
func (r *Regulator[T]) Remove(inst T) bool {
	id := inst.EntityID()
	if _, ok := r.tracked[id]; ok {
		delete(r.tracked, id)
		if r.current > 0 {
			r.current--
		}
		r.ledger.add(r.category, -1)
		r.removed()
		return true
	}
	return r.CancelPending()
}

// CancelPending abandons one in-flight request.
func (r *Regulator[T]) CancelPending() bool {
	if r.pending == 0 {
		return false
	}
	r.pending--
	r.ledger.add(r.category, -1)
	r.removed()
	return true
}

func (r *Regulator[T]) removed() {
	if r.HasReachedMax() || r.owner == nil {
		return
	}
	if r.onRemove != nil && !r.onRemove() {
		return
	}
	r.owner.Activate()
}

// IncrementMinTarget asks for one more instance than currently required
// and wakes the owner so the request is acted upon.
func (r *Regulator[T]) IncrementMinTarget() {
	r.min++
	if r.cap < r.min {
		r.cap = r.min
	}
	if r.owner != nil {
		r.owner.Activate()
	}
}

// SetMin overrides the minimum, used to carry pressure across upgrades.
func (r *Regulator[T]) SetMin(n int) {
	if n < 0 {
		n = 0
	}
	r.min = n
	if r.cap < r.min {
		r.cap = r.min
	}
}

// Release returns every count to the category ledger; call it when the
// regulator is destroyed with its scope.
func (r *Regulator[T]) Release() {
	r.ledger.add(r.category, -(r.current + r.pending))
	r.current, r.pending = 0, 0
	clear(r.tracked)
}

// Demand uses the configured cap as the maximum.
type Demand struct{}

func (Demand) MaxAmount(min, cap int) int {
	if cap < min {
		return min
	}
	return cap
}

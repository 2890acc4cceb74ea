package regulator

import (
	"errors"
	"testing"

	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

type countingOwner struct{ activations int }

func (c *countingOwner) Activate() { c.activations++ }

func unit(id int) *model.Unit { return &model.Unit{ID: model.EntityID(id), Type: "worker"} }

func newWorkerRegulator(owner *countingOwner) *UnitRegulator {
	return New[*model.Unit](Config{
		Code:       "worker",
		Category:   "civilian",
		Min:        2,
		Cap:        5,
		MaxPending: 1,
		Owner:      owner,
	})
}

func TestPendingCommitLifecycle(t *testing.T) {
	r := newWorkerRegulator(&countingOwner{})

	if !r.AddPending() {
		t.Fatal("AddPending refused on an empty regulator")
	}
	if r.Pending() != 1 || r.Current() != 0 {
		t.Fatalf("after AddPending: current=%d pending=%d", r.Current(), r.Pending())
	}
	if r.AddPending() {
		t.Error("AddPending accepted beyond maxPending")
	}

	r.Commit(unit(1))
	if r.Pending() != 0 || r.Current() != 1 {
		t.Fatalf("after Commit: current=%d pending=%d", r.Current(), r.Pending())
	}
	if r.HasReachedMin() {
		t.Error("HasReachedMin true at 1 of 2")
	}

	r.AddPending()
	r.Commit(unit(2))
	if !r.HasReachedMin() {
		t.Error("HasReachedMin false at 2 of 2")
	}
}

func TestRemoveUntrackedCancelsPending(t *testing.T) {
	r := newWorkerRegulator(&countingOwner{})
	r.AddExisting(unit(1))
	r.AddPending()

	if !r.Remove(unit(99)) {
		t.Fatal("Remove of an untracked instance with a pending request reported no change")
	}
	if r.Pending() != 0 || r.Current() != 1 {
		t.Errorf("current=%d pending=%d, want 1 and 0", r.Current(), r.Pending())
	}
	if r.Remove(unit(99)) {
		t.Error("Remove of an unknown instance without pending requests changed counts")
	}
	if r.Pending() != 0 {
		t.Errorf("pending went to %d", r.Pending())
	}
}

func TestRemoveTracked(t *testing.T) {
	r := newWorkerRegulator(&countingOwner{})
	r.AddExisting(unit(1))
	r.AddExisting(unit(2))
	r.AddPending()

	r.Remove(unit(1))
	if r.Current() != 1 || r.Pending() != 1 || r.Tracks(1) {
		t.Errorf("current=%d pending=%d tracks(1)=%v", r.Current(), r.Pending(), r.Tracks(1))
	}
}

func TestAddExistingIgnoresDuplicates(t *testing.T) {
	r := newWorkerRegulator(&countingOwner{})
	r.AddExisting(unit(1))
	if r.AddExisting(unit(1)) {
		t.Error("second AddExisting of the same instance succeeded")
	}
	if r.Current() != 1 {
		t.Errorf("current=%d, want 1", r.Current())
	}
}

func TestRemoveReactivatesOwner(t *testing.T) {
	owner := &countingOwner{}
	r := newWorkerRegulator(owner)
	for i := 1; i <= 5; i++ {
		r.AddExisting(unit(i))
	}
	if !r.HasReachedMax() {
		t.Fatal("expected max at 5 of 5")
	}

	r.Remove(unit(3))
	if owner.activations != 1 {
		t.Errorf("owner activated %d times, want 1", owner.activations)
	}
}

func TestOnSuccessfulRemoveSuppresses(t *testing.T) {
	owner := &countingOwner{}
	r := New[*model.Unit](Config{
		Code: "worker", Min: 1, Cap: 3, Owner: owner,
		OnSuccessfulRemove: func() bool { return false },
	})
	r.AddExisting(unit(1))
	r.Remove(unit(1))
	if owner.activations != 0 {
		t.Errorf("owner activated %d times despite suppression", owner.activations)
	}
}

func TestCategoryLimit(t *testing.T) {
	ledger := NewCategoryLedger(map[string]int{"military": 3})
	soldiers := New[*model.Unit](Config{Code: "soldier", Category: "military", Cap: 10, MaxPending: 5, Ledger: ledger})
	archers := New[*model.Unit](Config{Code: "archer", Category: "military", Cap: 10, MaxPending: 5, Ledger: ledger})

	soldiers.AddExisting(&model.Unit{ID: 1, Type: "soldier"})
	soldiers.AddPending()
	archers.AddExisting(&model.Unit{ID: 2, Type: "archer"})

	if !archers.HasReachedMax() || !soldiers.HasReachedMax() {
		t.Fatal("category limit of 3 not enforced across regulators")
	}
	if archers.AddPending() {
		t.Error("AddPending accepted over the category limit")
	}

	soldiers.CancelPending()
	if archers.HasReachedMax() {
		t.Error("category limit still reached after a cancellation")
	}
	if ledger.Count("military") != 2 {
		t.Errorf("ledger count = %d, want 2", ledger.Count("military"))
	}
}

func TestIncrementMinTarget(t *testing.T) {
	owner := &countingOwner{}
	r := New[*model.Building](Config{Code: "house", Min: 1, Cap: 1, Owner: owner})
	r.AddExisting(&model.Building{ID: 1, Type: "house"})
	if !r.HasReachedMin() {
		t.Fatal("expected min reached")
	}

	r.IncrementMinTarget()

	if r.HasReachedMin() || r.Min() != 2 || r.Max() != 2 {
		t.Errorf("after increment: min=%d max=%d reachedMin=%v", r.Min(), r.Max(), r.HasReachedMin())
	}
	if owner.activations != 1 {
		t.Errorf("owner activations = %d, want 1", owner.activations)
	}
}

func TestPopulationRatioPolicy(t *testing.T) {
	popCap := 20
	p := PopulationRatio{Ratio: sample.Fixed(0.5), Src: sample.NewSource(1), PopCap: func() int { return popCap }}
	if got := p.MaxAmount(2, 30); got != 10 {
		t.Errorf("MaxAmount = %d, want 10", got)
	}
	popCap = 100
	if got := p.MaxAmount(2, 30); got != 30 {
		t.Errorf("MaxAmount above cap = %d, want 30", got)
	}
	popCap = 2
	if got := p.MaxAmount(2, 30); got != 2 {
		t.Errorf("MaxAmount below min = %d, want 2", got)
	}
}

// Random add/commit/remove sequences never drive counts negative nor let
// pending requests push past max + maxPending.
func TestCountsNeverNegative(t *testing.T) {
	src := sample.NewSource(99)
	r := New[*model.Unit](Config{Code: "worker", Min: 2, Cap: 5, MaxPending: 2})
	nextID := 1
	for step := 0; step < 5000; step++ {
		switch src.IntN(5) {
		case 0:
			r.AddPending()
		case 1:
			r.Commit(unit(nextID))
			nextID++
		case 2:
			r.AddExisting(unit(nextID))
			nextID++
		case 3:
			r.Remove(unit(1 + src.IntN(nextID)))
		case 4:
			r.CancelPending()
		}
		if r.Current() < 0 || r.Pending() < 0 {
			t.Fatalf("step %d: current=%d pending=%d", step, r.Current(), r.Pending())
		}
		if r.Current() != len(r.Instances()) {
			t.Fatalf("step %d: current=%d but %d tracked", step, r.Current(), len(r.Instances()))
		}
	}
}

func TestAddPendingNeverExceedsMaxPlusPending(t *testing.T) {
	src := sample.NewSource(5)
	r := New[*model.Unit](Config{Code: "worker", Min: 1, Cap: 4, MaxPending: 2})
	nextID := 1
	for step := 0; step < 2000; step++ {
		if src.IntN(3) == 0 {
			r.Commit(unit(nextID))
			nextID++
		} else {
			before := r.Current() + r.Pending()
			if r.AddPending() && before+1 > r.Max()+r.MaxPending() {
				t.Fatalf("step %d: AddPending accepted at current+pending=%d", step, before)
			}
		}
		if src.IntN(4) == 0 {
			r.Remove(unit(1 + src.IntN(nextID)))
		}
	}
}

func TestGroupPick(t *testing.T) {
	src := sample.NewSource(3)
	a := New[*model.Unit](Config{Code: "soldier", Cap: 1})
	b := New[*model.Unit](Config{Code: "archer", Cap: 1})
	g := NewGroup[*model.Unit]("army")
	g.Add(a, 0)
	g.Add(b, 1)

	for i := 0; i < 50; i++ {
		if got := g.Pick(src); got != b {
			t.Fatalf("Pick chose %s with zero weight", got.Code())
		}
	}

	b.AddExisting(&model.Unit{ID: 1, Type: "archer"})
	if got := g.PickAvailable(src); got != a {
		t.Errorf("PickAvailable = %v, want soldier (archer is at max)", got)
	}
	a.AddExisting(&model.Unit{ID: 2, Type: "soldier"})
	if got := g.PickAvailable(src); got != nil {
		t.Errorf("PickAvailable = %s, want nil", got.Code())
	}
	if g.Count() != 2 || !g.Contains("ARCHER") {
		t.Errorf("Count=%d Contains(archer)=%v", g.Count(), g.Contains("ARCHER"))
	}
}

func TestSetOrderAndRelease(t *testing.T) {
	ledger := NewCategoryLedger(map[string]int{"housing": 10})
	s := NewSet[*model.Building](7)
	h := New[*model.Building](Config{Code: "house", Category: "housing", Cap: 5, Ledger: ledger})
	s.Add(New[*model.Building](Config{Code: "barracks", Cap: 1}))
	s.Add(h)
	h.AddExisting(&model.Building{ID: 1, Type: "house"})

	all := s.All()
	if len(all) != 2 || all[0].Code() != "barracks" || all[1].Code() != "house" {
		t.Fatalf("All() order wrong: %v", all)
	}
	s.Release()
	if ledger.Count("housing") != 0 {
		t.Errorf("ledger count after release = %d", ledger.Count("housing"))
	}
	if _, ok := s.Remove("HOUSE"); !ok || s.Len() != 1 {
		t.Error("Remove(HOUSE) failed")
	}
}

func TestNewUnitRegulatorUnknownCode(t *testing.T) {
	set, err := profile.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	p, _ := set.Get("balanced")
	env := Env{Profile: p, Src: sample.NewSource(1)}

	_, err = NewUnitRegulator(env, profile.RegulatorConfig{Code: "dragon"})
	if !errors.Is(err, profile.ErrUnknownEntity) {
		t.Errorf("error = %v, want ErrUnknownEntity", err)
	}
	if _, err := NewUnitRegulator(env, profile.RegulatorConfig{Code: "house"}); err == nil {
		t.Error("expected kind mismatch error for a building code")
	}

	cfg, _ := p.UnitConfig("worker")
	r, err := NewUnitRegulator(env, cfg)
	if err != nil {
		t.Fatalf("NewUnitRegulator(worker): %v", err)
	}
	if r.Min() < 6 || r.Min() > 8 || r.Category() != "civilian" {
		t.Errorf("worker regulator min=%d category=%q", r.Min(), r.Category())
	}
}

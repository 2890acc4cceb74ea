package sample

import "testing"

func TestRangeSampleWithinBounds(t *testing.T) {
	src := NewSource(7)
	r := Range{Min: 2, Max: 5}
	for i := 0; i < 1000; i++ {
		v := r.Sample(src)
		if v < 2 || v > 5 {
			t.Fatalf("sample %f outside [2, 5]", v)
		}
	}
}

func TestIntRangeInclusive(t *testing.T) {
	src := NewSource(1)
	r := IntRange{Min: 1, Max: 3}
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := r.Sample(src)
		if v < 1 || v > 3 {
			t.Fatalf("sample %d outside [1, 3]", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected all of 1..3 to be sampled, saw %v", seen)
	}
}

func TestReversedRange(t *testing.T) {
	src := NewSource(3)
	if v := (IntRange{Min: 4, Max: 4}).Sample(src); v != 4 {
		t.Errorf("fixed range sampled %d, want 4", v)
	}
	v := (Range{Min: 9, Max: 1}).Sample(src)
	if v < 1 || v > 9 {
		t.Errorf("reversed range sampled %f, want within [1, 9]", v)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a, b := NewSource(42), NewSource(42)
	for i := 0; i < 20; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("sources with the same seed diverged")
		}
	}
}

func TestWeighted(t *testing.T) {
	src := NewSource(11)
	for i := 0; i < 200; i++ {
		if got := src.Weighted([]float64{0, 5, 0}); got != 1 {
			t.Fatalf("Weighted picked %d, want 1", got)
		}
	}
	if got := src.Weighted(nil); got != -1 {
		t.Errorf("Weighted(nil) = %d, want -1", got)
	}
	got := src.Weighted([]float64{0, 0})
	if got < 0 || got > 1 {
		t.Errorf("Weighted with zero weights = %d, want 0 or 1", got)
	}
}

func TestTimerFiresOncePerInterval(t *testing.T) {
	timer := NewTimer(Fixed(1), NewSource(1))
	fired := 0
	for i := 0; i < 10; i++ {
		if timer.Tick(0.25) {
			fired++
		}
	}
	if fired != 2 {
		t.Errorf("timer fired %d times over 2.5s with a 1s interval, want 2", fired)
	}
}

func TestTimerExpire(t *testing.T) {
	timer := NewTimer(Fixed(100), NewSource(1))
	timer.Expire()
	if !timer.Tick(0) {
		t.Error("expired timer did not fire")
	}
	if timer.Tick(0) {
		t.Error("timer fired again right after re-arming")
	}
}

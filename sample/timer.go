package sample

// Timer is a countdown advanced by the simulation step. When it runs out
// it re-arms itself with a fresh sample of its interval.
type Timer struct {
	Interval  Range
	remaining float64
	src       *Source
}

// NewTimer returns a timer armed with one sample of interval.
func NewTimer(interval Range, src *Source) *Timer {
	t := &Timer{Interval: interval, src: src}
	t.Reset()
	return t
}

// Tick advances the timer by dt seconds and reports whether it expired.
// An expired timer re-arms before returning, so at most one expiry is
// reported per call.
func (t *Timer) Tick(dt float64) bool {
	t.remaining -= dt
	if t.remaining > 0 {
		return false
	}
	t.Reset()
	return true
}

// Reset re-arms the timer with a new sample.
func (t *Timer) Reset() {
	t.remaining = t.Interval.Sample(t.src)
}

// Expire makes the next Tick fire regardless of dt.
func (t *Timer) Expire() { t.remaining = 0 }

func (t *Timer) Remaining() float64 { return t.remaining }

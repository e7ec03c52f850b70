package checkpoint

import "math"

// Tracker keeps the lowest validation loss of a run.
type Tracker struct {
	best float64
}

// NewTracker returns a Tracker that hasn't seen any loss.
func NewTracker() *Tracker {
	return &Tracker{best: math.Inf(1)}
}

// Restore sets the best loss, as saved in a checkpoint.
func (t *Tracker) Restore(best float64) {
	t.best = best
}

// Best returns the lowest loss seen, or +Inf.
func (t *Tracker) Best() float64 {
	return t.best
}

// Observe records a new loss, and reports whether it is strictly lower than every loss
// before it. NaN is never best.
func (t *Tracker) Observe(loss float64) bool {
	if loss < t.best {
		t.best = loss
		return true
	}
	return false
}

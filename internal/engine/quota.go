package engine

// drainBudget caps the number of dispatches in one Drain call.
//
// Without a cap a listener that re-emits its own event keeps a drain busy
// forever; the cap hands control back to the caller (or the next tick)
// after limit dispatches.
type drainBudget struct {
	limit   int // 0 = unlimited
	current int
}

func newDrainBudget(limit int) *drainBudget {
	return &drainBudget{limit: limit}
}

// Take records one dispatch.
func (b *drainBudget) Take() {
	b.current++
}

// Exhausted reports whether the limit has been reached.
func (b *drainBudget) Exhausted() bool {
	return b.limit > 0 && b.current >= b.limit
}

// Current returns the dispatches recorded so far.
func (b *drainBudget) Current() int {
	return b.current
}

// Limit returns the configured cap.
func (b *drainBudget) Limit() int {
	return b.limit
}

// Package event detects remote events from the device's event counter.
package event

// Tracker compares successive device event counters. Any change counts as
// a new event, whether the counter went up, down or wrapped. The first
// observed value only sets the baseline.
//
// Tracker is not safe for concurrent use; it belongs to the poll loop.
type Tracker struct {
	last    uint16
	hasLast bool
}

// Observe records counter and reports whether it signals a new event.
func (t *Tracker) Observe(counter uint16) bool {
	if !t.hasLast {
		t.last, t.hasLast = counter, true
		return false
	}
	if counter == t.last {
		return false
	}
	t.last = counter
	return true
}

// Last returns the last observed counter, if any.
func (t *Tracker) Last() (uint16, bool) {
	return t.last, t.hasLast
}

package tree

import (
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
)

// EventDef describes one slot of a partial match.
type EventDef struct {
	// Index is the depth-first position of the primitive in the pattern.
	Index int
	Name  string
	Type  string
	// Path lists the argument positions of the primitive from the root of
	// the pattern structure.
	Path []int
	// Kleene marks a slot filled by a closure, which may hold many events.
	Kleene bool
}

func (d EventDef) groupKey(level int) int {
	if level < len(d.Path) {
		return d.Path[level]
	}
	return -1
}

// PartialMatch is an immutable set of events satisfying a sub-pattern.
//
// Slots are aligned with the EventDefs of the node that owns the match.
type PartialMatch struct {
	slots [][]*event.Event
	first time.Time
	last  time.Time
}

func newPartialMatch(slots [][]*event.Event) *PartialMatch {
	pm := &PartialMatch{slots: slots}
	seen := false
	for _, slot := range slots {
		for _, e := range slot {
			if !seen || e.Timestamp.Before(pm.first) {
				pm.first = e.Timestamp
			}
			if !seen || e.Timestamp.After(pm.last) {
				pm.last = e.Timestamp
			}
			seen = true
		}
	}
	return pm
}

// First returns the earliest event timestamp.
func (pm *PartialMatch) First() time.Time { return pm.first }

// Last returns the latest event timestamp.
func (pm *PartialMatch) Last() time.Time { return pm.last }

// Slots returns the events per slot. Callers must not modify the result.
func (pm *PartialMatch) Slots() [][]*event.Event { return pm.slots }

// Events returns every event of the match in slot order.
func (pm *PartialMatch) Events() []*event.Event {
	var out []*event.Event
	for _, slot := range pm.slots {
		out = append(out, slot...)
	}
	return out
}

// Contains reports whether e takes part in the match.
func (pm *PartialMatch) Contains(e *event.Event) bool {
	for _, slot := range pm.slots {
		for _, x := range slot {
			if x == e {
				return true
			}
		}
	}
	return false
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

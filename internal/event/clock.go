package event

import "sync/atomic"

// Clock hands out strictly increasing sequence numbers for events.
//
// Safe for concurrent use, although readers typically stamp events from a
// single goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Stamp assigns the next sequence number to e and returns it.
func (c *Clock) Stamp(e *Event) *Event {
	e.Seq = c.Next()
	return e
}

package engine

import "sync/atomic"

// Clock is the logical clock that numbers processed events.
//
// Every event handled by the loop is stamped with a strictly increasing seq.
// The seq orders the persisted event log, so a replay feeds events back in
// exactly the order they were first handled, independent of wall clocks.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the engine loop calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume numbering after the last event already in the log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

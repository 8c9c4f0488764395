package engine

import "sync/atomic"

// Clock is the engine's logical clock. Every journaled operation gets the
// next value, so journal order is execution order.
//
// Clock is safe for concurrent use, though only the Run goroutine
// advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0; the first operation gets seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, typically the journal
// head of an existing store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

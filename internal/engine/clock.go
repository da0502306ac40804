package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps units and invocations.
// Replay order is seq order, never wall-clock order.
//
// Safe for concurrent use, though only the Engine's writer loop calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, typically the
// store's MaxSeq.
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

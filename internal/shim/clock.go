package shim

import "sync/atomic"

// Sequencer stamps each transaction with a strictly increasing number.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for transaction ordering within one
// runtime. It never reads wall-clock time, so replays number transactions
// identically.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
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

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

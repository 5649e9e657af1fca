package engine

import "sync/atomic"

// Clock hands out run IDs.
//
// IDs are strictly increasing and assigned at submission time, so a run's
// ID reflects the order in which the search asked for it, never the order
// in which evaluations happen to finish. Build and install directories are
// named after the ID, which keeps concurrent evaluations apart.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The engine only calls Next from its control goroutine.
type Clock struct {
	next atomic.Int64
}

// NewClock creates a clock whose first ID is 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first ID is start.
// Used when run directories from an earlier session share the build root.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.next.Store(start)
	return c
}

// Next returns the next run ID.
func (c *Clock) Next() int64 {
	return c.next.Add(1) - 1
}

// Current returns the ID the next call to Next will return.
func (c *Clock) Current() int64 {
	return c.next.Load()
}

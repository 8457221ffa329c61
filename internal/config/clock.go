package config

import "sync/atomic"

// Clock is a monotonically increasing logical tick counter. The
// scheduler stores one but never reads or advances it, and the memory
// manager keeps its own LRU counter instead. It never touches
// wall-clock time.
type Clock struct {
	ticks atomic.Int64
}

// NewClock returns a Clock starting at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Tick advances the clock by one and returns the new value.
func (c *Clock) Tick() int64 {
	return c.ticks.Add(1)
}

// Now returns the current tick value without advancing it.
func (c *Clock) Now() int64 {
	return c.ticks.Load()
}

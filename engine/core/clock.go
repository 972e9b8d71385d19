package core

import "time"

// Clock measures the time of the main loop: total run time and the delta
// between consecutive ticks.
type Clock struct {
	now      func() time.Time
	start    time.Time
	lastTick time.Time
	elapsed  time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Start (re)starts the clock and resets the elapsed time.
func (c *Clock) Start() {
	c.start = c.now()
	c.lastTick = c.start
	c.elapsed = 0
}

// Tick advances the clock and returns the time since the previous tick, or
// since Start for the first one. A stopped clock returns 0.
func (c *Clock) Tick() time.Duration {
	if c.start.IsZero() {
		return 0
	}
	now := c.now()
	delta := now.Sub(c.lastTick)
	c.lastTick = now
	c.elapsed = now.Sub(c.start)
	return delta
}

// Stop freezes the elapsed time.
func (c *Clock) Stop() {
	c.start = time.Time{}
}

func (c *Clock) Running() bool {
	return !c.start.IsZero()
}

// Elapsed is the run time as of the last Tick.
func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

package scheduler

import "github.com/nvandessel/spikenet/internal/world"

// Clock is the simulation clock. It starts at tick 0 and advances once per step.
type Clock struct {
	now world.Tick
}

// Now returns the tick currently being (or about to be) simulated.
func (c *Clock) Now() world.Tick {
	return c.now
}

// Advance moves the clock to the next tick.
func (c *Clock) Advance() {
	c.now++
}

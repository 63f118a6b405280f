package sim

// Clock is the simulation clock. It advances one fixed step per tick and is
// the only time source deterministic code may read; anything touching
// wall-clock time lives outside the engine.
type Clock struct {
	tick uint64
	dt   float64
}

// NewClock builds a clock stepping at the given tick rate.
func NewClock(tickRate int) Clock {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	return Clock{dt: 1.0 / float64(tickRate)}
}

// Advance moves the clock one tick forward and returns the new tick number.
func (c *Clock) Advance() uint64 {
	c.tick++
	return c.tick
}

// Tick returns the current tick number.
func (c Clock) Tick() uint64 { return c.tick }

// Seconds returns the simulation time in seconds. Derived by multiplication
// rather than accumulation so two clocks at the same tick always agree
// bit-for-bit.
func (c Clock) Seconds() float64 { return float64(c.tick) * c.dt }

// DT returns the fixed step duration in seconds.
func (c Clock) DT() float64 { return c.dt }

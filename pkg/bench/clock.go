package bench

import "time"

// Clock is a host.Clock that only moves when told to.
type Clock struct {
	t time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time { return c.t }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// Constant is a host.Random that always returns the same value, clamped
// into the requested interval.
type Constant float64

func (c Constant) Float64Range(min, max float64) float64 {
	v := float64(c)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

package clock

import "time"

// FakeClock is a Clock whose time only moves when a test advances it.
// Not safe for concurrent use.
type FakeClock struct {
	current time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.current
}

// Advance shifts the clock forward (or backward with a negative d).
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

package clock

import "time"

// FakeClock is a manually advanced Clock for tests that exercise TTL
// expiry and refund-window cutoffs.
type FakeClock struct {
	current time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.current
}

// Advance moves the clock forward (or backward, with a negative d).
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

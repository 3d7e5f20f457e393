package testutil

import (
	"sync"
	"time"

	"docstore/internal/files"
)

// Clock is a files.Clock under test control. With a zero step it stands
// still; otherwise every reading moves it forward by the step, which gives
// successive share and version timestamps a strict order.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

var _ files.Clock = (*Clock)(nil)

// NewClock returns a clock reading t until moved.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

// FixedClock returns a clock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *Clock {
	return NewClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

// TickingClock returns a clock starting at start that advances by step
// after each reading.
func TickingClock(start time.Time, step time.Duration) *Clock {
	c := NewClock(start)
	c.step = step
	return c
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Share expiry tests use it to jump past a
// deadline.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed start time used by deterministic tests.
var Epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a fake wall clock that advances by a fixed step on
// every call to Now.
//
// Durations computed from it depend only on how many times Now is called,
// so reports rendered from a run are byte-identical across executions.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewDeterministicClock creates a clock at Epoch advancing 10ms per call.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(Epoch, 10*time.Millisecond)
}

// NewDeterministicClockAt creates a clock starting at start.
//
// The first call to Now() returns start.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, now: start, step: step}
}

// Now returns the current time and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Current returns the next time Now will return, without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}

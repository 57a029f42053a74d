package engine

import "time"

// Clock supplies wall-clock time for result timestamps and step durations.
//
// Tests inject a deterministic clock so reports and fingerprints are
// reproducible; production uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

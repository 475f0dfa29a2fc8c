package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps cluster snapshots. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the package clock's current time.
func Now() time.Time {
	return clock.Now()
}

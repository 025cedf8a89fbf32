package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests and the fixture tools can
// freeze the collection timestamp via SetClock. Production code uses the real
// clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the active clock. The forecast parser
// uses it to stamp every collected row with one shared collection timestamp.
func Now() time.Time { return clock.Now() }

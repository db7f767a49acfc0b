// Package clock abstracts the current time so that scheduling decisions
// (due windows, quiet hours, DST days) are testable with a controlled clock.
package clock

import "time"

// Clock supplies the current instant. Components never call time.Now
// directly; they take a Clock so tests can pin the instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

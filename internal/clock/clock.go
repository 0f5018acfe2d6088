// Package clock abstracts wall-clock time for the components whose behavior
// depends on it: token issuance, the deletion window and scrape timestamps.
package clock

import "time"

// Clock is a source of wall-clock time.
//
// After mirrors time.After; waiting code must go through it so tests can
// drive time forward without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// System is the real clock.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

package correlator

import "time"

// Clock abstracts wall time and timer scheduling so incident expiry is
// testable without real delays.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d and returns a handle that can
	// stop it. Stopping an already-fired timer is a no-op.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running if it has not run yet.
	Stop() bool
}

// realClock delegates to the time package.
type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

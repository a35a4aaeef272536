// Package clock abstracts time so timer-driven components can be driven
// deterministically in tests.
package clock

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// Clock provides the current time and delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

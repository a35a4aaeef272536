// Package reconcile provides the polling loop that keeps local read models in
// step with a slow, rate-limited remote source of truth while the user edits
// state optimistically.
package reconcile

import (
	"context"
	"time"
)

// State is the scheduling state of a Loop.
type State int

const (
	StateIdle State = iota
	StateScheduled
	StatePolling
	StateBackoff
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StatePolling:
		return "polling"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// FetchFunc performs one authoritative poll for focus. hasFocus is false when
// no entity is focused. On success it returns an apply func that writes the
// result into the local store; apply runs only if the result is still relevant
// and must not call back into the Loop.
type FetchFunc[F comparable] func(ctx context.Context, focus F, hasFocus bool) (apply func(), err error)

// Recorder receives poll outcomes, typically for metrics.
type Recorder interface {
	PollCompleted(loop string, err error)
	PollSuppressed(loop string)
	PollDiscarded(loop string)
}

type nopRecorder struct{}

func (nopRecorder) PollCompleted(string, error) {}
func (nopRecorder) PollSuppressed(string)       {}
func (nopRecorder) PollDiscarded(string)        {}

// Config contains loop settings.
type Config struct {
	Name            string
	RefreshInterval time.Duration // delay between polls (default: 2s)
	GracePeriod     time.Duration // polling is suppressed this long after a local edit (0 = never)
}

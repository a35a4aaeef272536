// Package debounce collapses rapid calls into a single trailing call.
package debounce

import (
	"sync"
	"time"

	"github.com/dokzlo13/huedash/internal/clock"
)

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithLeading runs a call immediately when nothing ran within the quiet
// period; calls arriving inside the period are still collapsed into one
// trailing call.
func WithLeading() Option {
	return func(d *Debouncer) { d.leading = true }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(d *Debouncer) { d.clock = c }
}

// Debouncer runs only the latest submitted func after a quiet period
// with no new submissions.
type Debouncer struct {
	mu      sync.Mutex
	clock   clock.Clock
	quiet   time.Duration
	leading bool
	timer   clock.Timer
	seq     uint64 // identifies the live timer; stale fires are ignored
	pending func()
	lastRun time.Time
}

// New creates a Debouncer with the given quiet period.
func New(quiet time.Duration, opts ...Option) *Debouncer {
	d := &Debouncer{clock: clock.Real{}, quiet: quiet}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call submits fn, replacing any pending call.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	d.stopTimerLocked()

	now := d.clock.Now()
	if d.leading && d.pending == nil && (d.lastRun.IsZero() || now.Sub(d.lastRun) > d.quiet) {
		d.lastRun = now
		d.mu.Unlock()
		fn()
		return
	}

	d.pending = fn
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(seq) })
	d.mu.Unlock()
}

// fire runs the pending call when the quiet timer elapses. A timer that
// was replaced after its callback started finds a newer seq and does nothing.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush runs the pending call now, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.stopTimerLocked()
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel discards the pending call without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimerLocked()
	d.pending = nil
}

func (d *Debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// take removes the pending call. Caller holds d.mu.
func (d *Debouncer) take() func() {
	fn := d.pending
	d.pending = nil
	if fn != nil {
		d.lastRun = d.clock.Now()
	}
	return fn
}

// Pending reports whether a call is waiting for the quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

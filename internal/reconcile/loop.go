package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/clock"
)

// Option configures a Loop.
type Option func(*options)

type options struct {
	clock    clock.Clock
	recorder Recorder
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRecorder sets the poll outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// Loop polls a remote source on a timer, backing off while the user is
// actively editing. At most one timer is live per loop, and a poll for the
// current focus is never started while another one is outstanding.
type Loop[F comparable] struct {
	name      string
	refresh   time.Duration
	grace     time.Duration
	clock     clock.Clock
	recorder  Recorder
	fetch     FetchFunc[F]
	onApplied func()

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	state      State
	focus      F
	hasFocus   bool
	generation uint64 // bumped on every focus change
	timer      clock.Timer
	timerSeq   uint64 // identifies the live timer; stale fires are ignored
	inFlight   bool
	flightGen  uint64
	lastEdit   time.Time
}

// New creates a loop. onApplied runs after every applied poll (overlay decay).
func New[F comparable](cfg Config, fetch FetchFunc[F], onApplied func(), opts ...Option) *Loop[F] {
	o := options{clock: clock.Real{}, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 2 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "loop"
	}
	if onApplied == nil {
		onApplied = func() {}
	}

	return &Loop[F]{
		name:      cfg.Name,
		refresh:   cfg.RefreshInterval,
		grace:     cfg.GracePeriod,
		clock:     o.clock,
		recorder:  o.recorder,
		fetch:     fetch,
		onApplied: onApplied,
		state:     StateIdle,
	}
}

// Start schedules the first poll one refresh interval from now.
func (l *Loop[F]) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return
	}
	l.started = true
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.scheduleLocked(l.refresh)

	log.Debug().
		Str("loop", l.name).
		Dur("refresh", l.refresh).
		Dur("grace", l.grace).
		Msg("Reconciliation loop started")
}

// Stop cancels the pending timer and aborts any in-flight poll.
// Results arriving after Stop are discarded.
func (l *Loop[F]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}
	l.stopped = true
	l.stopTimerLocked()
	l.state = StateIdle
	if l.cancel != nil {
		l.cancel()
	}
	log.Debug().Str("loop", l.name).Msg("Reconciliation loop stopped")
}

// SetFocus changes the polled entity. The pending timer is cancelled and a
// new one scheduled; results of polls for the previous focus are discarded.
func (l *Loop[F]) SetFocus(focus F) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasFocus && l.focus == focus {
		return
	}
	l.focus = focus
	l.hasFocus = true
	l.refocusLocked()
}

// ClearFocus removes the focus; subsequent polls are full refreshes.
func (l *Loop[F]) ClearFocus() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasFocus {
		return
	}
	var zero F
	l.focus = zero
	l.hasFocus = false
	l.refocusLocked()
}

// Focus returns the current focus.
func (l *Loop[F]) Focus() (F, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.focus, l.hasFocus
}

// NoteLocalEdit records a user edit, starting the grace window.
// It is valid during an in-flight poll; that poll's result is still applied.
func (l *Loop[F]) NoteLocalEdit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastEdit = l.clock.Now()
}

// Trigger replaces the pending timer with an immediate one. It is a no-op
// while a poll for the current focus is in flight.
func (l *Loop[F]) Trigger() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.stopped {
		return
	}
	if l.inFlight && l.flightGen == l.generation {
		return
	}
	l.stopTimerLocked()
	l.scheduleLocked(0)
}

// State returns the current scheduling state.
func (l *Loop[F]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop[F]) refocusLocked() {
	l.generation++
	if !l.started || l.stopped {
		return
	}
	l.stopTimerLocked()
	l.scheduleLocked(l.refresh)
}

func (l *Loop[F]) scheduleLocked(d time.Duration) {
	l.timerSeq++
	seq := l.timerSeq
	l.state = StateScheduled
	l.timer = l.clock.AfterFunc(d, func() { l.fire(seq) })
}

func (l *Loop[F]) stopTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerSeq++
}

func (l *Loop[F]) fire(seq uint64) {
	l.mu.Lock()
	if l.stopped || seq != l.timerSeq {
		l.mu.Unlock()
		return
	}
	l.timer = nil

	now := l.clock.Now()
	if l.grace > 0 && !l.lastEdit.IsZero() && now.Sub(l.lastEdit) < l.grace {
		// User is still editing; back off without touching the network.
		l.scheduleLocked(l.grace)
		l.state = StateBackoff
		l.mu.Unlock()

		l.recorder.PollSuppressed(l.name)
		log.Debug().Str("loop", l.name).Dur("delay", l.grace).Msg("Local edit within grace period, backing off")
		return
	}

	l.state = StatePolling
	l.inFlight = true
	gen := l.generation
	l.flightGen = gen
	focus, hasFocus := l.focus, l.hasFocus
	ctx := l.ctx
	l.mu.Unlock()

	apply, err := l.fetch(ctx, focus, hasFocus)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.flightGen == gen {
		l.inFlight = false
	}
	relevant := !l.stopped && gen == l.generation

	switch {
	case err != nil:
		l.recorder.PollCompleted(l.name, err)
		log.Warn().Err(err).Str("loop", l.name).Msg("Poll failed, keeping previous state")
	case !relevant:
		l.recorder.PollDiscarded(l.name)
		log.Debug().Str("loop", l.name).Msg("Discarding poll result for stale focus")
	default:
		if apply != nil {
			apply()
		}
		l.onApplied()
		l.recorder.PollCompleted(l.name, nil)
	}

	if l.stopped {
		l.state = StateIdle
		return
	}
	if gen != l.generation {
		// The focus change already scheduled the next timer.
		return
	}
	l.scheduleLocked(l.refresh)
}

package debounce

import (
	"sync"
	"time"
)

// Keyed keeps one Debouncer per key so edits to different entities
// do not cancel each other.
type Keyed[K comparable] struct {
	mu     sync.Mutex
	quiet  time.Duration
	opts   []Option
	byKey  map[K]*Debouncer
	closed bool
}

// NewKeyed creates a keyed debouncer.
func NewKeyed[K comparable](quiet time.Duration, opts ...Option) *Keyed[K] {
	return &Keyed[K]{
		quiet: quiet,
		opts:  opts,
		byKey: make(map[K]*Debouncer),
	}
}

// Call submits fn for key.
func (k *Keyed[K]) Call(key K, fn func()) {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	d, ok := k.byKey[key]
	if !ok {
		d = New(k.quiet, k.opts...)
		k.byKey[key] = d
	}
	k.mu.Unlock()

	d.Call(fn)
}

// Flush runs every pending call now.
func (k *Keyed[K]) Flush() {
	for _, d := range k.snapshot() {
		d.Flush()
	}
}

// Cancel drops every pending call and rejects further calls.
func (k *Keyed[K]) Cancel() {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()

	for _, d := range k.snapshot() {
		d.Cancel()
	}
}

func (k *Keyed[K]) snapshot() []*Debouncer {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]*Debouncer, 0, len(k.byKey))
	for _, d := range k.byKey {
		out = append(out, d)
	}
	return out
}

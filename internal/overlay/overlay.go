// Package overlay holds optimistic local values that mask authoritative
// remote state for a bounded number of poll cycles.
package overlay

import "sync"

// DefaultLifetime is the number of completed polls an override survives.
const DefaultLifetime = 2

type entry[V any] struct {
	value     V
	remaining int
}

// Overlay maps fields to override values with decay counters.
// An override is visible while its counter is positive.
type Overlay[K comparable, V any] struct {
	mu       sync.Mutex
	lifetime int
	equal    func(a, b V) bool
	entries  map[K]*entry[V]
}

// New creates an overlay. lifetime <= 0 uses DefaultLifetime.
// equal decides whether an authoritative value confirms an override;
// nil means overrides are only removed by decay.
func New[K comparable, V any](lifetime int, equal func(a, b V) bool) *Overlay[K, V] {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Overlay[K, V]{
		lifetime: lifetime,
		equal:    equal,
		entries:  make(map[K]*entry[V]),
	}
}

// Set stores an override and resets its counter to the lifetime.
func (o *Overlay[K, V]) Set(field K, value V) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[field] = &entry[V]{value: value, remaining: o.lifetime}
}

// Get returns the active override for field.
func (o *Overlay[K, V]) Get(field K) (V, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[field]
	if !ok || e.remaining <= 0 {
		var zero V
		return zero, false
	}
	return e.value, true
}

// View returns the override for field if active, else authoritative.
func (o *Overlay[K, V]) View(field K, authoritative V) V {
	if v, ok := o.Get(field); ok {
		return v
	}
	return authoritative
}

// Decay is called once per completed authoritative poll.
func (o *Overlay[K, V]) Decay() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for k, e := range o.entries {
		e.remaining--
		if e.remaining <= 0 {
			delete(o.entries, k)
		}
	}
}

// Confirm drops the override for field if authoritative matches it.
// Returns true if an override was dropped.
func (o *Overlay[K, V]) Confirm(field K, authoritative V) bool {
	if o.equal == nil {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[field]
	if !ok || !o.equal(e.value, authoritative) {
		return false
	}
	delete(o.entries, field)
	return true
}

// Clear drops the override for field regardless of its counter.
func (o *Overlay[K, V]) Clear(field K) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, field)
}

// ClearIf drops the override for field only if it still holds value.
// Used to revert a failed write without discarding a newer edit.
func (o *Overlay[K, V]) ClearIf(field K, value V) bool {
	if o.equal == nil {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[field]
	if !ok || !o.equal(e.value, value) {
		return false
	}
	delete(o.entries, field)
	return true
}

// Len returns the number of active overrides.
func (o *Overlay[K, V]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Equal is an equality func for comparable values.
func Equal[V comparable](a, b V) bool {
	return a == b
}

// Package debounce provides a small value-delay primitive: a rapidly
// changing input value is propagated to a callback only once it has been
// stable for a fixed quiet period. The engine runs two independent
// debouncers (query text and serialized filters) because the two inputs
// have different user-interaction cadences.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays propagation of values of type T. Set replaces the
// pending value and restarts the quiet-period timer, so a superseded value
// is never emitted. The callback runs on the timer goroutine.
type Debouncer[T any] struct {
	mu      sync.Mutex
	quiet   time.Duration
	fn      func(T)
	timer   *time.Timer
	pending T
	stopped bool
}

// New creates a debouncer that invokes fn with the most recent value once
// no new value has arrived for the given quiet period.
func New[T any](quiet time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{quiet: quiet, fn: fn}
}

// Set records v as the pending value and restarts the timer. Calling Set
// again before the quiet period elapses discards the previous pending
// value without emitting it.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fire)
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.pending
	fn := d.fn
	d.mu.Unlock()
	fn(v)
}

// Flush emits the pending value immediately if a timer is armed.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	armed := d.timer != nil && d.timer.Stop()
	d.mu.Unlock()
	if armed {
		d.fire()
	}
}

// Cancel discards the pending value without emitting it. Unlike Stop, the
// debouncer stays usable: a later Set arms a fresh timer.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels any pending emission and prevents future ones. A stopped
// debouncer ignores Set.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

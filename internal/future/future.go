// Package future implements the one-shot result slot external or cross-thunk
// awaiters block on (spec.md §4.6).
package future

import "sync"

// Payload is what gets delivered to a Future: a value, or an error flagged
// for re-raising on the receiving side.
type Payload struct {
	Value any
	Err   error
}

// Future is a one-shot slot. Put is idempotent per-instance (only the first
// call has effect); Wait blocks until a Payload is available.
type Future struct {
	once sync.Once
	done chan struct{}
	val  Payload
}

// New returns a ready-to-use Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Put delivers a payload. Only the first call takes effect; subsequent calls
// are no-ops, matching the scheduler's guarantee of at-most-one put per
// registration (the futures list for a thunk is deleted after fan-out).
func (f *Future) Put(p Payload) {
	f.once.Do(func() {
		f.val = p
		close(f.done)
	})
}

// Wait blocks until a payload has been delivered and returns it.
func (f *Future) Wait() Payload {
	<-f.done
	return f.val
}

// Fetch blocks like Wait but returns (value, error) directly, raising the
// delivered error to the caller the way spec.md's fetch(future) does.
func (f *Future) Fetch() (any, error) {
	p := f.Wait()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Value, nil
}

// Done reports whether the future has already been fulfilled, without
// blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

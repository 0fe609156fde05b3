// Package watch provides a single-slot value that one writer overwrites and
// any number of readers observe. Readers see only the latest value; there is
// no queue.
package watch

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("watched value closed")

type Value[T any] struct {
	lock    sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
	closed  bool
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Set overwrites the value and wakes every reader. Setting a closed Value
// is a no-op.
func (w *Value[T]) Set(v T) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return
	}
	w.value = v
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

func (w *Value[T]) Get() T {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.value
}

// Close wakes every reader; readers that have seen the latest value then
// get ErrClosed.
func (w *Value[T]) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.changed)
}

// Subscribe returns a Receiver that has already seen the current value.
func (w *Value[T]) Subscribe() *Receiver[T] {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return &Receiver[T]{w: w, seen: w.version}
}

// Receiver tracks which version of a Value its owner has seen. A Receiver
// is not safe for concurrent use.
type Receiver[T any] struct {
	w    *Value[T]
	seen uint64
}

// Changed returns a channel that is closed once there is a value this
// receiver has not seen, or the Value is closed.
func (r *Receiver[T]) Changed() <-chan struct{} {
	r.w.lock.RLock()
	defer r.w.lock.RUnlock()
	if r.w.version != r.seen {
		return closedChan
	}
	return r.w.changed
}

// Wait blocks until there is an unseen value. It does not mark the value
// seen; use Latest for that.
func (r *Receiver[T]) Wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.Changed():
		}
		pending, closed := r.state()
		if pending {
			return nil
		}
		if closed {
			return ErrClosed
		}
	}
}

func (r *Receiver[T]) state() (pending, closed bool) {
	r.w.lock.RLock()
	defer r.w.lock.RUnlock()
	return r.w.version != r.seen, r.w.closed
}

// Latest returns the current value and marks it seen.
func (r *Receiver[T]) Latest() T {
	r.w.lock.RLock()
	defer r.w.lock.RUnlock()
	r.seen = r.w.version
	return r.w.value
}

// Peek returns the current value without marking it seen.
func (r *Receiver[T]) Peek() T {
	return r.w.Get()
}

func (r *Receiver[T]) Closed() bool {
	_, closed := r.state()
	return closed
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Package broadcast is a bounded fan-out channel: every receiver sees every
// value, unless it falls more than the capacity behind, in which case the
// oldest values are dropped for it and it is told how many it missed.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrClosed      = errors.New("broadcast closed")
	ErrNoReceivers = errors.New("broadcast has no receivers")
)

// LaggedError reports values a slow receiver lost. It is not fatal; the
// next Recv continues from the oldest value still retained.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged, missed %d values", e.Missed)
}

type ring[T any] struct {
	lock sync.Mutex

	buf []T
	// Sequence numbers of the oldest retained value and of the next value
	// to be sent.
	head, tail uint64

	receivers int
	closed    bool
	notify    chan struct{}
}

type Sender[T any] struct {
	r *ring[T]
}

type Receiver[T any] struct {
	r      *ring[T]
	next   uint64
	closed bool
}

// New returns a Sender and its first Receiver. Capacity is the backlog each
// receiver may accumulate before it starts losing values.
func New[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	r := &ring[T]{
		buf:       make([]T, capacity),
		receivers: 1,
		notify:    make(chan struct{}),
	}
	return &Sender[T]{r: r}, &Receiver[T]{r: r}
}

// Send publishes v to every receiver. It fails with ErrNoReceivers once all
// receivers have been closed.
func (s *Sender[T]) Send(v T) error {
	r := s.r
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.receivers == 0 {
		return ErrNoReceivers
	}
	capacity := uint64(len(r.buf))
	r.buf[r.tail%capacity] = v
	r.tail++
	if r.tail-r.head > capacity {
		r.head = r.tail - capacity
	}
	close(r.notify)
	r.notify = make(chan struct{})
	return nil
}

// Close ends the stream. Receivers drain what is retained, then get
// ErrClosed.
func (s *Sender[T]) Close() {
	r := s.r
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.notify)
}

// Subscribe returns a Receiver that sees values sent from now on.
func (s *Sender[T]) Subscribe() *Receiver[T] {
	r := s.r
	r.lock.Lock()
	defer r.lock.Unlock()
	r.receivers++
	return &Receiver[T]{r: r, next: r.tail}
}

func (s *Sender[T]) Receivers() int {
	s.r.lock.Lock()
	defer s.r.lock.Unlock()
	return s.r.receivers
}

// Recv returns the next value. A *LaggedError means values were dropped;
// calling Recv again continues with the oldest retained one.
func (rx *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	r := rx.r
	for {
		r.lock.Lock()
		if rx.closed {
			r.lock.Unlock()
			return zero, ErrClosed
		}
		if rx.next < r.head {
			missed := r.head - rx.next
			rx.next = r.head
			r.lock.Unlock()
			return zero, &LaggedError{Missed: missed}
		}
		if rx.next < r.tail {
			v := r.buf[rx.next%uint64(len(r.buf))]
			rx.next++
			r.lock.Unlock()
			return v, nil
		}
		if r.closed {
			r.lock.Unlock()
			return zero, ErrClosed
		}
		notify := r.notify
		r.lock.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-notify:
		}
	}
}

// Clone returns an independent Receiver positioned where this one is.
func (rx *Receiver[T]) Clone() *Receiver[T] {
	r := rx.r
	r.lock.Lock()
	defer r.lock.Unlock()
	if !rx.closed {
		r.receivers++
	}
	return &Receiver[T]{r: r, next: rx.next, closed: rx.closed}
}

// Close unsubscribes. Once every receiver is closed, Send fails.
func (rx *Receiver[T]) Close() {
	r := rx.r
	r.lock.Lock()
	defer r.lock.Unlock()
	if rx.closed {
		return
	}
	rx.closed = true
	r.receivers--
}

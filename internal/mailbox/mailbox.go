// Package mailbox implements a small generic thread-safe FIFO used to hand
// messages between the subscriber's reader goroutine and its consumer.
package mailbox

import (
	"sync"
	"time"

	"github.com/nats-lite/gonats-core/internal/corerr"
)

// Mailbox is a bounded or unbounded FIFO queue. Capacity 0 means unbounded:
// Send never blocks. Capacity > 0 makes Send block until a slot frees up or
// the mailbox is closed. A channel cannot serve both modes at once (an
// unbounded channel does not exist, and sending on a closed channel panics
// instead of returning an error), so Mailbox is built on a mutex, a slice,
// and two condition variables instead.
type Mailbox[T any] struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond
	items    []T
	capacity int
	closed   bool
}

// New returns an empty Mailbox. capacity <= 0 means unbounded.
func New[T any](capacity int) *Mailbox[T] {
	if capacity < 0 {
		capacity = 0
	}
	m := &Mailbox[T]{capacity: capacity}
	m.notEmpty.L = &m.mu
	m.notFull.L = &m.mu
	return m
}

// Send enqueues v. On a bounded mailbox it blocks until a slot is free or
// the mailbox is closed, in which case it returns ErrClosed without
// enqueuing v. On an unbounded mailbox it never blocks.
func (m *Mailbox[T]) Send(v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.capacity > 0 && len(m.items) >= m.capacity && !m.closed {
		m.notFull.Wait()
	}
	if m.closed {
		return corerr.ErrClosed
	}
	m.items = append(m.items, v)
	m.notEmpty.Signal()
	return nil
}

// Receive dequeues the oldest item, blocking up to timeout when the mailbox
// is empty. timeout <= 0 waits forever. It returns ErrTimeout if the
// deadline elapses first and ErrClosed once the mailbox is closed and
// drained.
func (m *Mailbox[T]) Receive(timeout time.Duration) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.items) == 0 && !m.closed && timeout > 0 {
		timedOut := false
		timer := time.AfterFunc(timeout, func() {
			m.mu.Lock()
			timedOut = true
			m.mu.Unlock()
			m.notEmpty.Broadcast()
		})
		defer timer.Stop()
		for len(m.items) == 0 && !m.closed && !timedOut {
			m.notEmpty.Wait()
		}
		if timedOut && len(m.items) == 0 {
			return zero, corerr.ErrTimeout
		}
	} else {
		for len(m.items) == 0 && !m.closed {
			m.notEmpty.Wait()
		}
	}

	if len(m.items) == 0 {
		return zero, corerr.ErrClosed
	}
	v := m.items[0]
	m.items = m.items[1:]
	m.notFull.Signal()
	return v, nil
}

// TryReceive dequeues the oldest item without blocking. ok is false when the
// mailbox is currently empty, whether or not it is closed.
func (m *Mailbox[T]) TryReceive() (v T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return v, false
	}
	v = m.items[0]
	m.items = m.items[1:]
	m.notFull.Signal()
	return v, true
}

// Close marks the mailbox closed. Blocked and future Send calls return
// ErrClosed; Receive keeps returning already-queued items before it too
// starts returning ErrClosed.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notEmpty.Broadcast()
	m.notFull.Broadcast()
}

// Drain removes and returns every currently queued item without closing the
// mailbox, used at subscriber teardown to reclaim buffers still resident in
// a mailbox.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	m.notFull.Broadcast()
	return items
}

// Len reports the number of items currently queued.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

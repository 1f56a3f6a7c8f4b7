// Package queue provides an unbounded FIFO queue with separate sender and
// receiver handles.
package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded, multi-producer, single-consumer FIFO queue.
// Receives block while the queue is empty. A closed queue rejects sends and
// reports end-of-stream to its receiver once drained.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
	done   chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Sender returns the producing handle of the queue.
func (q *Queue[T]) Sender() Sender[T] {
	return Sender[T]{q: q}
}

// Receiver returns the consuming handle of the queue.
func (q *Queue[T]) Receiver() Receiver[T] {
	return Receiver[T]{q: q}
}

// Close abandons the queue. Pending items are still delivered; afterwards
// receivers observe end-of-stream. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue[T]) pop(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		if q.closed {
			q.mu.Unlock()
			return zero, false
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-q.done:
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Sender is the producing end of a Queue. The zero Sender is a discard sink.
type Sender[T any] struct {
	q *Queue[T]
}

// Discard returns a sink that accepts and drops every value.
func Discard[T any]() Sender[T] {
	return Sender[T]{}
}

// Send enqueues v without blocking. It reports false if the queue was closed.
func (s Sender[T]) Send(v T) bool {
	if s.q == nil {
		return true
	}
	return s.q.push(v)
}

// Receiver is the consuming end of a Queue.
type Receiver[T any] struct {
	q *Queue[T]
}

// Receive blocks until a value is available. It reports false when the
// queue is closed and drained, or when ctx is done.
func (r Receiver[T]) Receive(ctx context.Context) (T, bool) {
	if r.q == nil {
		var zero T
		return zero, false
	}
	return r.q.pop(ctx)
}

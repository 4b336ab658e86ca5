package stream

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO used to decouple producers that must never
// block from a single consumer.
//
// The signal channel (buffered, size 1) coalesces wakeups so the consumer
// can wait with select alongside ctx.Done(). close closes the signal so any
// waiter wakes and observes the terminal state.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	err    error
	signal chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		items:  make([]T, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// push appends v. Returns false if the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, v)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryPop removes the front item without blocking.
func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]

	// Clear the slot so the backing array does not pin popped values.
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return v, true
}

// pop blocks until an item is available, the queue is closed and drained,
// or ctx is done. ok is false once the queue is finished; err is then the
// error the queue was closed with.
func (q *queue[T]) pop(ctx context.Context) (v T, ok bool, err error) {
	for {
		if v, ok := q.tryPop(); ok {
			return v, true, nil
		}

		q.mu.Lock()
		if q.closed && len(q.items) == 0 {
			err := q.err
			q.mu.Unlock()
			return v, false, err
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return v, false, ctx.Err()
		case <-q.signal:
		}
	}
}

// close marks the end of input, recording err as the terminal error.
func (q *queue[T]) close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.err = err
	close(q.signal)
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

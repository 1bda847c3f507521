package crawler

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Get once the queue has been closed.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO with task accounting. Every Put adds one
// unfinished task and every Done retires one, so Idle only reports true
// once all items have been taken and their processing has finished.
type Queue[T any] struct {
	mu         sync.Mutex
	items      []T
	unfinished int
	puts       uint64
	closed     bool

	ready  chan struct{}
	closeC chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready:  make(chan struct{}, 1),
		closeC: make(chan struct{}),
	}
}

// Put appends v. It never blocks; items put after Close are dropped.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, v)
	q.unfinished++
	q.puts++
	q.mu.Unlock()
	q.wake()
}

// Get blocks until an item is available, ctx is done, or the queue closes.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, ErrQueueClosed
		}
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.wake()
			}
			return v, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.closeC:
			return zero, ErrQueueClosed
		case <-q.ready:
		}
	}
}

// Done marks one previously taken item as fully processed.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	q.mu.Unlock()
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Puts returns how many items have ever been put.
func (q *Queue[T]) Puts() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.puts
}

// Idle reports whether nothing is pending and nothing is being processed.
func (q *Queue[T]) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.unfinished == 0
}

// Close discards pending items and releases every blocked Get. It returns
// how many items were dropped.
func (q *Queue[T]) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	dropped := len(q.items)
	q.closed = true
	q.unfinished -= dropped
	q.items = nil
	close(q.closeC)
	return dropped
}

func (q *Queue[T]) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

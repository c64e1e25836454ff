package runner

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Pop once the queue is closed and empty
var ErrQueueClosed = errors.New("queue closed")

// Sink accepts messages from workers
type Sink interface {
	Push(msg Message) bool
}

// Queue is an unbounded FIFO safe for any number of producers and consumers.
// Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []Message
	notify chan struct{}
	closed bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Push appends msg. It returns false if the queue is closed.
func (q *Queue) Push(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, msg)
	q.signal()
	return true
}

// TryPop removes the oldest message without blocking
func (q *Queue) TryPop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Drain removes and returns every queued message in order
func (q *Queue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Pop blocks until a message is available, the queue is closed or ctx is done
func (q *Queue) Pop(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if msg, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting messages. Queued messages can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}

func (q *Queue) popLocked() (Message, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return msg, true
}

// signal wakes one waiting consumer; must hold mu
func (q *Queue) signal() {
	if q.closed {
		return
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

package engine

import (
	"sync"
)

// pending is a submitted request waiting for the writer loop.
type pending struct {
	req   Request
	reply chan reply
}

type reply struct {
	res *Result
	err error
}

// requestQueue is a thread-safe unbounded FIFO of pending requests.
//
// Submitters may run on any goroutine (gRPC handlers, CLI); only the
// Engine's Run loop dequeues. A buffered signal channel of size 1 lets the
// loop wait on the queue and ctx.Done() in the same select.
type requestQueue struct {
	mu     sync.Mutex
	items  []*pending
	closed bool
	signal chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		items:  make([]*pending, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(p *pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, p)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *requestQueue) TryDequeue() (*pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items[0] = nil // release for GC
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return p, true
}

// Wait returns a channel that fires when items may be available. It is
// closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items and wakes all waiters. Items already queued
// can still be dequeued.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close was called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

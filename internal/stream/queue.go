// pattern: Imperative Shell
package stream

import "sync"

// dispatchBatch is one inbound event paired with the handler snapshot taken
// at arrival time. The snapshot is immutable once taken: handlers that
// unsubscribe after arrival still receive this batch.
type dispatchBatch struct {
	eventType string
	data      []byte
	handlers  []Handler
}

// dispatchQueue is an unbounded FIFO drained by a single goroutine. It is
// the explicit task queue standing in for a microtask queue: the read loop
// enqueues without ever blocking, and slow handlers only ever delay later
// batches, never the connection I/O.
type dispatchQueue struct {
	mu      sync.Mutex
	batches []dispatchBatch
	signal  chan struct{}
	closed  bool
}

func newDispatchQueue() *dispatchQueue {
	return &dispatchQueue{signal: make(chan struct{}, 1)}
}

// push appends a batch. Never blocks.
func (q *dispatchQueue) push(b dispatchBatch) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.batches = append(q.batches, b)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest batch. The second return is false when
// the queue is empty.
func (q *dispatchQueue) pop() (dispatchBatch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return dispatchBatch{}, false
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b, true
}

// wait returns a channel that is signalled when new batches arrive.
func (q *dispatchQueue) wait() <-chan struct{} {
	return q.signal
}

// close marks the queue closed; further pushes are dropped. Wakes any
// waiting drainer so it can observe shutdown.
func (q *dispatchQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.batches = nil
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

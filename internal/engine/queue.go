package engine

import (
	"sync"

	"github.com/roach88/rumscope/internal/rum"
)

// Event wraps one raw event for the queue.
type Event struct {
	Raw rum.Event

	// Ack marks acknowledgements re-injected by the engine itself.
	Ack bool
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that acknowledgements produced while handling
// an event can be appended without blocking the loop that produces them.
//
// Host platform callbacks enqueue from any goroutine while the Engine's Run
// loop dequeues. The signal channel lets the loop wait with a context.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.push(e)
	return true
}

// EnqueueInternal adds an event even after Close, so that acknowledgements
// of documents written during the final drain are still processed.
func (q *eventQueue) EnqueueInternal(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.push(e)
}

// push appends e and signals availability. Caller holds q.mu.
func (q *eventQueue) push(e Event) {
	q.events = append(q.events, e)

	// The signal channel is closed once the queue is closed; waiters are
	// already woken for good.
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain attribute maps.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// IsClosed reports whether Close was called.
func (q *eventQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more external events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

package gesture

import "sync"

// Queue is an unbounded FIFO of detected gestures. Push never blocks and
// never discards, so the hook goroutine can keep feeding it while a slow
// switch sequence holds the consumer. Consumers block on Wake and drain
// with Pop; one wake signal can cover any number of pushes.
type Queue struct {
	mu     sync.Mutex
	events []Event
	wake   chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends ev to the queue.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest queued gesture.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	if len(q.events) == 0 {
		// Release the backing array once drained.
		q.events = nil
	}
	return ev, true
}

// Wake is signaled after a push. Drain with Pop until it reports empty
// before waiting again; a pending signal with an already-drained queue is
// possible and harmless.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

// Len returns the number of queued gestures.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

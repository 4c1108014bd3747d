package device

import "sync"

// DefaultQueueSize is the event buffer used when none is given.
const DefaultQueueSize = 64

// Queue is the single channel every hardware callback posts to.
type Queue struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewQueue creates a queue buffering size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Post enqueues ev. It blocks while the queue is full and returns false
// once the queue is closed.
func (q *Queue) Post(ev Event) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- ev:
		return true
	case <-q.done:
		return false
	}
}

// Close releases blocked posters. Events still queued are discarded.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Events is the receive side consumed by the dispatch loop.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Package adc provides the two-channel analog source behind the sampler.
//
// Conversions are double buffered: the owner queues two buffers up front, each
// Trigger fills the oldest queued buffer and hands it to the done callback,
// and the done handler re-queues the buffer it consumed. The real source reads
// Linux IIO sysfs attributes; FakeSource scripts raw values for tests.
package adc

import (
	"errors"
	"sync"
)

// Channels per conversion: 0 is the supply proxy, 1 the external input.
const Channels = 2

// QueueDepth is the number of buffers a source accepts.
const QueueDepth = 2

var (
	// ErrNoBuffer is returned by Trigger when no buffer is queued.
	ErrNoBuffer = errors.New("adc: no buffer queued")

	// ErrQueueFull is returned by Queue when QueueDepth buffers are pending.
	ErrQueueFull = errors.New("adc: buffer queue full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("adc: source closed")
)

// Buffer holds one raw sample per channel.
type Buffer struct {
	Raw [Channels]int16
}

// Source is a triggered two-channel converter.
type Source interface {
	// Queue hands a buffer to the converter.
	Queue(buf *Buffer) error

	// Trigger starts a conversion into the oldest queued buffer. The
	// filled buffer is delivered asynchronously to the done callback.
	Trigger() error

	// Close releases the converter.
	Close() error
}

// queue is the FIFO of buffers owned by a source.
type queue struct {
	mu     sync.Mutex
	bufs   []*Buffer
	closed bool
}

func (q *queue) push(buf *Buffer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if len(q.bufs) >= QueueDepth {
		return ErrQueueFull
	}
	q.bufs = append(q.bufs, buf)
	return nil
}

func (q *queue) pop() (*Buffer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if len(q.bufs) == 0 {
		return nil, ErrNoBuffer
	}
	buf := q.bufs[0]
	q.bufs = q.bufs[1:]
	return buf, nil
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bufs)
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.bufs = nil
}

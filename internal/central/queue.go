package central

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultQueueCapacity is the number of events the queue holds before producers block.
const DefaultQueueCapacity = 256

// Queue is an ordered, bounded, multi-producer single-consumer event channel.
//
// Unlike a ring buffer it never discards: Send blocks while the queue is full until room
// frees up, the context ends or the queue is closed.
//
//	q := NewQueue(256)
//
//	// Producers, any number of goroutines.
//	_ = q.Send(ctx, ev)
//
//	// The single consumer drains until Close.
//	for ev, ok := q.Receive(); ok; ev, ok = q.Receive() {
//	    handle(ev)
//	}
type Queue struct {
	ch   chan Event
	done chan struct{}

	// mu is held shared by in-flight sends so Close never closes ch under a sender
	mu        sync.RWMutex
	closeOnce sync.Once

	metrics QueueMetrics
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		panic("central: queue capacity must be > 0")
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues ev, blocking while the queue is full.
// It returns ErrQueueClosed after Close, or the context error if ctx ends first.
func (q *Queue) Send(ctx context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- ev:
		atomic.AddInt64(&q.metrics.Written, 1)
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until an event is available or the queue is closed and drained.
// The ok result is false once nothing more will ever be delivered.
func (q *Queue) Receive() (ev Event, ok bool) {
	ev, ok = <-q.ch
	if ok {
		atomic.AddInt64(&q.metrics.Processed, 1)
	}
	return
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close stops accepting events. Events already buffered remain readable. Idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	})
}

// Metrics returns a snapshot of the queue counters.
func (q *Queue) Metrics() QueueMetrics {
	return QueueMetrics{
		Written:   atomic.LoadInt64(&q.metrics.Written),
		Processed: atomic.LoadInt64(&q.metrics.Processed),
	}
}

// QueueMetrics provides lock-free counters for Queue.
type QueueMetrics struct {
	Written   int64
	Processed int64
}

package batch

import (
	"sync"
)

// Queue is a thread-safe FIFO that automatically doubles its capacity when
// it reaches 70% full. Producers Push one item at a time; the consumer takes
// everything at once with Drain, so items are always stored from index 0.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	count    int
	capacity int
	initial  int
	closed   bool

	// Stats
	totalPushed  int64
	totalDrained int64
	resizeCount  int
}

// NewQueue creates a new queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		initial:  initialCapacity,
	}
}

// Push adds an item to the queue. Grows the queue if at 70% capacity.
// Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.resize(q.capacity * 2)
		q.resizeCount++
	}

	q.buf[q.count] = item
	q.count++
	q.totalPushed++
	return true
}

// Drain removes and returns every queued item in arrival order.
// Returns nil if the queue is empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	result := make([]T, q.count)
	copy(result, q.buf[:q.count])
	q.totalDrained += int64(q.count)

	// Release the burst allocation once it is no longer needed.
	if q.capacity > 4*q.initial {
		q.buf = make([]T, q.initial)
		q.capacity = q.initial
	} else {
		clear(q.buf[:q.count]) // Release references for GC
	}
	q.count = 0

	return result
}

// Close closes the queue. After closing, Push returns false.
// Items already queued can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the current number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the current capacity of the queue.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:        q.count,
		Capacity:     q.capacity,
		TotalPushed:  q.totalPushed,
		TotalDrained: q.totalDrained,
		ResizeCount:  q.resizeCount,
		Closed:       q.closed,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count        int
	Capacity     int
	TotalPushed  int64
	TotalDrained int64
	ResizeCount  int
	Closed       bool
}

// resize moves the queued items into a buffer of the given capacity.
// Must be called with lock held.
func (q *Queue[T]) resize(newCapacity int) {
	newBuf := make([]T, newCapacity)
	copy(newBuf, q.buf[:q.count])

	q.buf = newBuf
	q.capacity = newCapacity
}

// Package sequence provides executors that run functions in order on a
// single goroutine, the player's owner goroutine.
//
// Queue is drained by the caller, which makes tile delivery deterministic
// in tests and lets hosts with their own event loop run completions at a
// point of their choosing. Loop owns a goroutine that drains a Queue as
// work arrives.
package sequence

import (
	"context"
	"sync"
)

// Queue is a FIFO of functions posted from any goroutine and run by
// whichever goroutine calls RunPending.
//
// Thread safety: Post, Len and Ready are safe for concurrent use.
// RunPending must only be called from the owner goroutine.
type Queue struct {
	mu    sync.Mutex
	items []func()

	// ready has room for one signal; Post fills it when the queue goes
	// from empty to non-empty.
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Post appends fn to the queue. It never blocks.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
		// Already signalled
	}
}

// Len returns the number of queued functions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready returns a channel that receives a value after Post adds work. A
// receive does not guarantee the queue is still non-empty.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// RunPending runs queued functions, including ones posted while it runs,
// until the queue is empty, and returns how many it ran.
func (q *Queue) RunPending() int {
	n := 0
	for {
		batch := q.take()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// RunOne runs the oldest queued function, if any, and reports whether it
// ran one.
func (q *Queue) RunOne() bool {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return false
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.mu.Unlock()

	fn()
	return true
}

// Wait blocks until the queue is non-empty or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		if q.Len() > 0 {
			return nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// take removes and returns every queued function.
func (q *Queue) take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch
}

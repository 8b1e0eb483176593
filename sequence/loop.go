package sequence

import (
	"sync"
	"sync/atomic"
)

// Loop runs posted functions in order on its own goroutine.
//
// A player driven by a Loop must have every one of its methods called
// through Do or Post, so that all mutation happens on the loop goroutine.
//
// Thread safety: Loop is safe for concurrent use.
type Loop struct {
	queue *Queue

	// done signals the goroutine to stop.
	done chan struct{}

	// wg waits for the goroutine to finish.
	wg sync.WaitGroup

	// running indicates whether the loop is accepting work.
	running atomic.Bool
}

// NewLoop creates a loop and starts its goroutine.
func NewLoop() *Loop {
	l := &Loop{
		queue: NewQueue(),
		done:  make(chan struct{}),
	}
	l.running.Store(true)

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			// Drain remaining work before exiting
			l.queue.RunPending()
			return
		case <-l.queue.Ready():
			l.queue.RunPending()
		}
	}
}

// Post schedules fn on the loop goroutine. Functions posted after Close
// are dropped.
func (l *Loop) Post(fn func()) {
	if !l.running.Load() {
		return
	}
	l.queue.Post(fn)
}

// Do runs fn on the loop goroutine and waits for it to return. It reports
// false without running fn if the loop is closed. Do must not be called
// from the loop goroutine itself.
func (l *Loop) Do(fn func()) bool {
	if !l.running.Load() {
		return false
	}
	finished := make(chan struct{})
	l.queue.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return true
	case <-l.done:
		// The goroutine drains the queue before exiting.
		l.wg.Wait()
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Close stops the loop after running the work already posted and waits
// for the goroutine to exit. Close is idempotent.
func (l *Loop) Close() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	close(l.done)
	l.wg.Wait()
}

// IsRunning reports whether the loop accepts work.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

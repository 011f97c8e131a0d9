package dataflow

import (
	"context"
	"sync"
	"time"
)

// Queue is a point-to-point dataflow channel: many producers, many
// consumers, FIFO, with each value delivered to exactly one ordinary
// reader. An unbounded queue never blocks its writers; a queue created with
// WithCapacity blocks Write while the buffer is full.
//
// Taps registered with WheneverBound observe every value in write order
// without competing with readers.
type Queue[T any] struct {
	mu      sync.Mutex
	notFull *sync.Cond

	buf     []T
	waiters []*waiter[T]
	taps    []*tapFeed[T]
	avail   []func()

	capacity int
	sched    Scheduler
}

// waiter is a blocked or asynchronous reader awaiting direct hand-off.
// Exactly one of ch and fn is set.
type waiter[T any] struct {
	ch chan T
	fn func(T)
}

// tapFeed delivers values to a single tap handler strictly in write order.
// Values are appended under the queue lock; a drain task is scheduled
// outside it, so handlers never run under any lock.
type tapFeed[T any] struct {
	mu      sync.Mutex
	buf     []T
	running bool
	h       func(T)
}

func (t *tapFeed[T]) enqueue(v T) {
	t.mu.Lock()
	t.buf = append(t.buf, v)
	t.mu.Unlock()
}

func (t *tapFeed[T]) kick(sched Scheduler) {
	t.mu.Lock()
	if t.running || len(t.buf) == 0 {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()
	sched.Submit(t.drain)
}

func (t *tapFeed[T]) drain() {
	for {
		t.mu.Lock()
		if len(t.buf) == 0 {
			t.running = false
			t.mu.Unlock()
			return
		}
		v := t.buf[0]
		t.buf = t.buf[1:]
		t.mu.Unlock()
		t.h(v)
	}
}

// NewQueue creates a point-to-point channel. It is unbounded unless
// WithCapacity is given.
func NewQueue[T any](opts ...Option) *Queue[T] {
	cfg := newConfig(opts)
	q := &Queue[T]{
		capacity: cfg.capacity,
		sched:    cfg.sched,
	}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *Queue[T]) scheduler() Scheduler {
	if q.sched != nil {
		return q.sched
	}
	return DefaultScheduler()
}

// Write appends a value. If a reader is waiting, the value is handed to the
// longest-waiting one directly and never enqueued. On a bounded queue Write
// blocks while the buffer is full and no reader waits.
func (q *Queue[T]) Write(v T) {
	q.mu.Lock()
	for q.capacity > 0 && len(q.buf) >= q.capacity && len(q.waiters) == 0 {
		q.notFull.Wait()
	}

	var target *waiter[T]
	if len(q.waiters) > 0 {
		target = q.waiters[0]
		q.waiters = q.waiters[1:]
	} else {
		q.buf = append(q.buf, v)
	}
	// Taps record the value under the queue lock so concurrent writers
	// cannot reorder a tap's view of the stream.
	for _, t := range q.taps {
		t.enqueue(v)
	}
	taps := q.taps
	avail := q.avail
	sched := q.scheduler()
	q.mu.Unlock()

	if target != nil {
		if target.fn != nil {
			fn := target.fn
			sched.Submit(func() { fn(v) })
		} else {
			// The waiter channel is 1-buffered; this never blocks.
			target.ch <- v
		}
	}
	for _, t := range taps {
		t.kick(sched)
	}
	for _, f := range avail {
		sched.Submit(f)
	}
}

// Read dequeues the next value, blocking until one is written. Concurrent
// readers race for the next value but each value is delivered exactly once.
func (q *Queue[T]) Read(ctx context.Context) (T, error) {
	q.mu.Lock()
	if len(q.buf) > 0 {
		v := q.takeLocked()
		q.mu.Unlock()
		return v, nil
	}
	w := &waiter[T]{ch: make(chan T, 1)}
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case v := <-w.ch:
		return v, nil
	case <-ctx.Done():
		if q.removeWaiter(w) {
			var zero T
			return zero, ctx.Err()
		}
		// A writer already claimed this waiter; the value is in flight
		// and must not be lost.
		return <-w.ch, nil
	}
}

// TryRead is Read with a bounded wait; ok reports whether a value arrived
// before the deadline.
func (q *Queue[T]) TryRead(d time.Duration) (T, bool) {
	q.mu.Lock()
	if len(q.buf) > 0 {
		v := q.takeLocked()
		q.mu.Unlock()
		return v, true
	}
	w := &waiter[T]{ch: make(chan T, 1)}
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case v := <-w.ch:
		return v, true
	case <-timer.C:
		if q.removeWaiter(w) {
			var zero T
			return zero, false
		}
		return <-w.ch, true
	}
}

// Poll dequeues an available value without blocking.
func (q *Queue[T]) Poll() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		var zero T
		return zero, false
	}
	return q.takeLocked(), true
}

// takeLocked pops the head of the buffer and releases one blocked writer.
// Callers hold q.mu and have checked the buffer is non-empty.
func (q *Queue[T]) takeLocked() T {
	v := q.buf[0]
	q.buf = q.buf[1:]
	if q.capacity > 0 {
		q.notFull.Signal()
	}
	return v
}

// removeWaiter unregisters w, reporting whether it was still queued.
func (q *Queue[T]) removeWaiter(w *waiter[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cand := range q.waiters {
		if cand == w {
			q.waiters = append(q.waiters[:i:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// WhenBound registers a one-shot asynchronous reader: h is invoked via the
// scheduler with the next value, which it consumes in place of a blocking
// Read.
func (q *Queue[T]) WhenBound(h func(T)) {
	q.mu.Lock()
	if len(q.buf) > 0 {
		v := q.takeLocked()
		sched := q.scheduler()
		q.mu.Unlock()
		sched.Submit(func() { h(v) })
		return
	}
	q.waiters = append(q.waiters, &waiter[T]{fn: h})
	q.mu.Unlock()
}

// WheneverBound registers a tap: h is invoked via the scheduler for every
// value written after registration, in write order. Taps do not consume
// values; ordinary readers still see every one of them.
func (q *Queue[T]) WheneverBound(h func(T)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.taps = append(q.taps, &tapFeed[T]{h: h})
}

// Len returns the number of buffered values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// HasValue reports whether a value is currently buffered. Like
// Variable.IsBound, the answer is a non-authoritative hint.
func (q *Queue[T]) HasValue() bool {
	return q.Len() > 0
}

// PollAny implements SelectableChannel.
func (q *Queue[T]) PollAny() (any, bool) {
	v, ok := q.Poll()
	if !ok {
		return nil, false
	}
	return v, true
}

// WheneverAvailable implements SelectableChannel: f is submitted to the
// scheduler after every write.
func (q *Queue[T]) WheneverAvailable(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.avail = append(q.avail, f)
}

// SingleAssignment implements SelectableChannel.
func (q *Queue[T]) SingleAssignment() bool {
	return false
}

package dataflow

import "sync"

// Broadcast fans values out to independent read-views. Every subscriber
// present when Write is called receives the value exactly once, in write
// order; subscribers created afterwards start at the current head and never
// see it. Write and CreateReadChannel are serialized against each other, so
// a subscription racing a write either fully receives the value or fully
// misses it.
type Broadcast[T any] struct {
	mu    sync.Mutex
	subs  []*Queue[T]
	sched Scheduler
}

// NewBroadcast creates a broadcast channel with no subscribers.
func NewBroadcast[T any](opts ...Option) *Broadcast[T] {
	cfg := newConfig(opts)
	return &Broadcast[T]{sched: cfg.sched}
}

// CreateReadChannel subscribes a new read-view positioned at the current
// write head. The view is an unbounded Queue supporting the full
// point-to-point read side; it is independent of every other view.
func (b *Broadcast[T]) CreateReadChannel() *Queue[T] {
	var opts []Option
	if b.sched != nil {
		opts = append(opts, WithScheduler(b.sched))
	}
	q := NewQueue[T](opts...)
	b.mu.Lock()
	b.subs = append(b.subs, q)
	b.mu.Unlock()
	return q
}

// Write appends v to every live read-view. It never fails and never blocks
// on subscribers (views are unbounded); each subscriber handles its own
// read errors.
func (b *Broadcast[T]) Write(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.subs {
		q.Write(v)
	}
}

// Subscribers returns the number of live read-views.
func (b *Broadcast[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

package dataflow

import (
	"context"
	"sync"
	"time"
)

// LazyVariable is a single-assignment variable whose initializer runs at
// first blocking observation (Read, TryRead, WhenBound or a Then chain).
// The initializer is invoked exactly once, via the scheduler; its value or
// error binds the cell, and a returned Awaitable flattens to that source's
// eventual outcome. Poll never triggers initialization.
type LazyVariable[T any] struct {
	*Variable[T]
	once sync.Once
	init func() (T, error)
}

// NewLazyVariable creates a lazy variable around init. Panics if init is
// nil.
func NewLazyVariable[T any](init func() (T, error), opts ...Option) *LazyVariable[T] {
	if init == nil {
		panic("dataflow: NewLazyVariable requires an initializer")
	}
	return &LazyVariable[T]{
		Variable: NewVariable[T](opts...),
		init:     init,
	}
}

// trigger schedules the initializer on first observation.
func (l *LazyVariable[T]) trigger() {
	l.once.Do(func() {
		l.scheduler().Submit(func() {
			out, err := callHandler0(l.init)
			bindOutcome(l.Variable, out, err)
		})
	})
}

// Read triggers initialization and blocks until the cell is bound.
func (l *LazyVariable[T]) Read(ctx context.Context) (T, error) {
	l.trigger()
	return l.Variable.Read(ctx)
}

// TryRead triggers initialization and waits up to d for the cell to bind.
func (l *LazyVariable[T]) TryRead(d time.Duration) (T, bool, error) {
	l.trigger()
	return l.Variable.TryRead(d)
}

// WhenBound triggers initialization and registers h for the outcome.
func (l *LazyVariable[T]) WhenBound(h func(T, error)) {
	l.trigger()
	l.Variable.WhenBound(h)
}

// WhenBoundAny triggers initialization and registers h for the outcome.
func (l *LazyVariable[T]) WhenBoundAny(h func(any, error)) {
	l.trigger()
	l.Variable.WhenBoundAny(h)
}

package dataflow

import "sync/atomic"

// Task runs f on the scheduler and returns a variable bound to its outcome.
// A nil scheduler uses the process-wide default. Panics in f fail the
// variable; a returned Awaitable flattens.
func Task[R any](sched Scheduler, f func() (R, error)) *Variable[R] {
	if sched == nil {
		sched = DefaultScheduler()
	}
	r := NewVariable[R](WithScheduler(sched))
	sched.Submit(func() {
		out, err := callHandler0(f)
		bindOutcome(r, out, err)
	})
	return r
}

// WhenAllBound returns a variable bound to combiner applied to the values
// of vars once every input is bound. If any input fails, the result fails
// with the first error observed; inputs that already failed at registration
// win in registration order. An empty vars slice binds the combiner of an
// empty value list immediately.
func WhenAllBound[T, R any](sched Scheduler, vars []*Variable[T], combiner func([]T) (R, error)) *Variable[R] {
	if sched == nil {
		sched = DefaultScheduler()
	}
	r := NewVariable[R](WithScheduler(sched))

	// Deterministic tie-break: an input already failed before registration
	// fails the result in input order, ahead of any scheduler race.
	for _, v := range vars {
		if _, err, state := v.snapshot(); state == stateFailed {
			_ = r.BindError(err)
			return r
		}
	}

	if len(vars) == 0 {
		sched.Submit(func() {
			out, err := callHandler1(combiner, nil)
			bindOutcome(r, out, err)
		})
		return r
	}

	results := make([]T, len(vars))
	var remaining atomic.Int64
	remaining.Store(int64(len(vars)))

	for i, v := range vars {
		i := i
		v.WhenBound(func(value T, err error) {
			if err != nil {
				_ = r.BindError(err)
				return
			}
			results[i] = value
			if remaining.Add(-1) == 0 {
				out, cerr := callHandler1(combiner, results)
				bindOutcome(r, out, cerr)
			}
		})
	}
	return r
}

// WhenAllBoundValues is WhenAllBound over heterogeneous sources: the
// combiner receives the untyped values in source order.
func WhenAllBoundValues(sched Scheduler, sources []Awaitable, combiner func([]any) (any, error)) *Variable[any] {
	if sched == nil {
		sched = DefaultScheduler()
	}
	r := NewVariable[any](WithScheduler(sched))

	if len(sources) == 0 {
		sched.Submit(func() {
			out, err := callHandler1(combiner, nil)
			bindOutcome(r, out, err)
		})
		return r
	}

	results := make([]any, len(sources))
	var remaining atomic.Int64
	remaining.Store(int64(len(sources)))

	for i, src := range sources {
		i := i
		src.WhenBoundAny(func(value any, err error) {
			if err != nil {
				_ = r.BindError(err)
				return
			}
			results[i] = value
			if remaining.Add(-1) == 0 {
				out, cerr := callHandler1(combiner, results)
				bindOutcome(r, out, cerr)
			}
		})
	}
	return r
}

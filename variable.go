package dataflow

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// variableState tracks the one-shot lifecycle of a Variable.
type variableState int

const (
	stateUnbound variableState = iota
	stateBound
	stateFailed
)

// Variable is a single-assignment dataflow variable: a cell that is bound at
// most once to a value or an error, after which it is immutable. Readers
// block until the cell reaches a terminal state; handlers registered with
// WhenBound are dispatched through the scheduler in registration order.
//
// The zero Variable is not usable; create one with NewVariable.
type Variable[T any] struct {
	mu    sync.Mutex
	state variableState
	value T
	err   error

	// done is closed when the variable becomes terminal. Blocked readers
	// wait on it; the close edge is the happens-before publication point
	// for value and err.
	done chan struct{}

	// handlers and avail are drained exactly once on the terminal
	// transition.
	handlers []func(T, error)
	avail    []func()

	sched Scheduler
}

// Source is the read side shared by Variable and LazyVariable, consumed by
// the Then/Apply combinators.
type Source[T any] interface {
	WhenBound(h func(T, error))
	WhenBoundAny(h func(any, error))
}

// Awaitable is the untyped completion contract used for flattening: a
// handler or initializer that returns an Awaitable binds the downstream
// variable to that source's eventual outcome instead of the source itself.
type Awaitable interface {
	WhenBoundAny(h func(any, error))
}

// NewVariable creates an unbound single-assignment variable.
func NewVariable[T any](opts ...Option) *Variable[T] {
	cfg := newConfig(opts)
	return &Variable[T]{
		done:  make(chan struct{}),
		sched: cfg.sched,
	}
}

func (v *Variable[T]) scheduler() Scheduler {
	if v.sched != nil {
		return v.sched
	}
	return DefaultScheduler()
}

// Bind transitions the variable to Bound(value). Rebinding with a value
// equal to the current one (reflect.DeepEqual) is accepted silently so that
// racing producers of the same result do not fail; any other rebind returns
// ErrAlreadyBound.
func (v *Variable[T]) Bind(value T) error {
	return v.bind(value, false)
}

// BindUnique is Bind without the equal-value tolerance: any second bind
// returns ErrAlreadyBound.
func (v *Variable[T]) BindUnique(value T) error {
	return v.bind(value, true)
}

func (v *Variable[T]) bind(value T, unique bool) error {
	v.mu.Lock()
	if v.state != stateUnbound {
		if !unique && v.state == stateBound && reflect.DeepEqual(v.value, value) {
			v.mu.Unlock()
			return nil
		}
		v.mu.Unlock()
		return ErrAlreadyBound
	}
	v.state = stateBound
	v.value = value
	handlers, avail, sched := v.drainLocked()
	v.mu.Unlock()

	close(v.done)
	v.dispatch(handlers, avail, sched, value, nil)
	return nil
}

// BindError transitions the variable to Failed(err). Returns
// ErrAlreadyBound if the variable is already terminal.
func (v *Variable[T]) BindError(err error) error {
	v.mu.Lock()
	if v.state != stateUnbound {
		v.mu.Unlock()
		return ErrAlreadyBound
	}
	v.state = stateFailed
	v.err = err
	handlers, avail, sched := v.drainLocked()
	v.mu.Unlock()

	close(v.done)
	var zero T
	v.dispatch(handlers, avail, sched, zero, err)
	return nil
}

// drainLocked snapshots and empties the handler lists. Callers hold v.mu.
func (v *Variable[T]) drainLocked() ([]func(T, error), []func(), Scheduler) {
	handlers := v.handlers
	avail := v.avail
	v.handlers = nil
	v.avail = nil
	return handlers, avail, v.scheduler()
}

// dispatch submits the drained handlers in registration order. Handlers
// never run on the binding goroutine and never under the cell lock.
func (v *Variable[T]) dispatch(handlers []func(T, error), avail []func(), sched Scheduler, value T, err error) {
	for _, h := range handlers {
		h := h
		sched.Submit(func() { h(value, err) })
	}
	for _, f := range avail {
		sched.Submit(f)
	}
}

// Read blocks until the variable is bound, returning its value or error.
// Cancellation of ctx surfaces as ctx.Err() and leaves the cell untouched.
func (v *Variable[T]) Read(ctx context.Context) (T, error) {
	select {
	case <-v.done:
		return v.value, v.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryRead is Read with a bounded wait. ok reports whether the variable was
// bound before the deadline; on timeout the cell state is untouched and no
// error is reported.
func (v *Variable[T]) TryRead(d time.Duration) (value T, ok bool, err error) {
	select {
	case <-v.done:
		return v.value, true, v.err
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-v.done:
		return v.value, true, v.err
	case <-timer.C:
		var zero T
		return zero, false, nil
	}
}

// Poll returns the bound value without blocking. It reports no value while
// the variable is unbound or failed, and never raises.
func (v *Variable[T]) Poll() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == stateBound {
		return v.value, true
	}
	var zero T
	return zero, false
}

// IsBound reports whether the variable has reached a terminal state. The
// answer is a non-authoritative hint: a false result may be stale by the
// time the caller acts on it.
func (v *Variable[T]) IsBound() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// WhenBound registers a handler invoked with the terminal outcome via the
// scheduler. Handlers registered before binding are submitted in
// registration order; a handler registered after binding is submitted
// immediately.
func (v *Variable[T]) WhenBound(h func(T, error)) {
	v.mu.Lock()
	if v.state == stateUnbound {
		v.handlers = append(v.handlers, h)
		v.mu.Unlock()
		return
	}
	value, err, sched := v.value, v.err, v.scheduler()
	v.mu.Unlock()
	sched.Submit(func() { h(value, err) })
}

// WhenBoundAny is WhenBound with an untyped payload, implementing Awaitable
// for heterogeneous combinators and flattening.
func (v *Variable[T]) WhenBoundAny(h func(any, error)) {
	v.WhenBound(func(value T, err error) { h(value, err) })
}

// snapshot returns the current state without blocking.
func (v *Variable[T]) snapshot() (T, error, variableState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.err, v.state
}

// PollAny implements SelectableChannel.
func (v *Variable[T]) PollAny() (any, bool) {
	value, ok := v.Poll()
	if !ok {
		return nil, false
	}
	return value, true
}

// WheneverAvailable implements SelectableChannel: f is submitted to the
// scheduler when the variable becomes bound, or immediately if it already
// is.
func (v *Variable[T]) WheneverAvailable(f func()) {
	v.mu.Lock()
	if v.state == stateUnbound {
		v.avail = append(v.avail, f)
		v.mu.Unlock()
		return
	}
	bound := v.state == stateBound
	sched := v.scheduler()
	v.mu.Unlock()
	if bound {
		sched.Submit(f)
	}
}

// SingleAssignment implements SelectableChannel. A select consuming a
// variable's value disables that channel for all later requests.
func (v *Variable[T]) SingleAssignment() bool {
	return true
}

// Then derives a new variable bound to onValue applied to v's value once v
// is bound. Errors propagate unchanged unless an onError handler is given,
// in which case its result (or failure) binds the derived variable. A
// panicking handler fails the derived variable. A handler returning an
// Awaitable flattens: the derived variable is bound to that source's
// eventual outcome.
func Then[T, R any](v Source[T], onValue func(T) (R, error), onError ...func(error) (R, error)) *Variable[R] {
	var opts []Option
	if sp, ok := v.(interface{ scheduler() Scheduler }); ok {
		opts = append(opts, WithScheduler(sp.scheduler()))
	}
	r := NewVariable[R](opts...)

	var handleErr func(error) (R, error)
	if len(onError) > 0 {
		handleErr = onError[0]
	}

	v.WhenBound(func(value T, err error) {
		if err != nil {
			if handleErr == nil {
				_ = r.BindError(err)
				return
			}
			out, herr := callHandler1(handleErr, err)
			bindOutcome(r, out, herr)
			return
		}
		out, herr := callHandler1(onValue, value)
		bindOutcome(r, out, herr)
	})
	return r
}

// Apply derives a new variable bound to the pure function f applied to v's
// value: deferred method application without explicit error plumbing.
// Errors propagate unchanged.
func Apply[T, R any](v Source[T], f func(T) R) *Variable[R] {
	return Then(v, func(value T) (R, error) {
		return f(value), nil
	})
}

// bindOutcome binds r to (out, err), flattening when out is an Awaitable.
func bindOutcome[R any](r *Variable[R], out R, err error) {
	if err != nil {
		_ = r.BindError(err)
		return
	}
	if aw, ok := any(out).(Awaitable); ok && !isNilValue(out) {
		aw.WhenBoundAny(func(inner any, ierr error) {
			if ierr != nil {
				_ = r.BindError(ierr)
				return
			}
			typed, ok := inner.(R)
			if !ok {
				_ = r.BindError(fmt.Errorf("dataflow: flattened value %T is not %T", inner, *new(R)))
				return
			}
			_ = r.Bind(typed)
		})
		return
	}
	_ = r.Bind(out)
}

// callHandler1 invokes h, converting a panic to an error.
func callHandler1[A, R any](h func(A) (R, error), arg A) (out R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dataflow: handler panic: %v", rec)
		}
	}()
	return h(arg)
}

// callHandler0 invokes h, converting a panic to an error.
func callHandler0[R any](h func() (R, error)) (out R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dataflow: handler panic: %v", rec)
		}
	}()
	return h()
}

// isNilValue reports whether v holds a nil pointer-like value, guarding the
// flattening path against typed nils.
func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

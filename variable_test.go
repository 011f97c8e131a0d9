package dataflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentstation/dataflow"
)

// serialScheduler queues submissions and runs them in order when Run is
// called, making handler dispatch deterministic in tests.
type serialScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

func (s *serialScheduler) Submit(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *serialScheduler) Run() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()
		task()
	}
}

func TestVariableBindAndRead(t *testing.T) {
	v := dataflow.NewVariable[int]()

	got := make(chan int, 1)
	go func() {
		value, err := v.Read(context.Background())
		if err != nil {
			t.Errorf("Read() error = %v", err)
		}
		got <- value
	}()

	if err := v.Bind(7); err != nil {
		t.Fatalf("Bind(7) error = %v", err)
	}

	select {
	case value := <-got:
		if value != 7 {
			t.Errorf("Read() = %d, want 7", value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not return after Bind")
	}
}

func TestVariableRebindRules(t *testing.T) {
	v := dataflow.NewVariable[int]()
	if err := v.Bind(7); err != nil {
		t.Fatalf("Bind(7) error = %v", err)
	}

	if err := v.Bind(7); err != nil {
		t.Errorf("equal rebind error = %v, want nil", err)
	}
	if err := v.Bind(8); !errors.Is(err, dataflow.ErrAlreadyBound) {
		t.Errorf("unequal rebind error = %v, want ErrAlreadyBound", err)
	}
	if err := v.BindUnique(7); !errors.Is(err, dataflow.ErrAlreadyBound) {
		t.Errorf("BindUnique error = %v, want ErrAlreadyBound", err)
	}
	if err := v.BindError(errors.New("late")); !errors.Is(err, dataflow.ErrAlreadyBound) {
		t.Errorf("BindError after Bind error = %v, want ErrAlreadyBound", err)
	}

	value, err := v.Read(context.Background())
	if err != nil || value != 7 {
		t.Errorf("Read() = %d, %v, want 7, nil", value, err)
	}
}

func TestVariableBindError(t *testing.T) {
	v := dataflow.NewVariable[string]()
	cause := errors.New("boom")
	if err := v.BindError(cause); err != nil {
		t.Fatalf("BindError error = %v", err)
	}

	if _, err := v.Read(context.Background()); !errors.Is(err, cause) {
		t.Errorf("Read() error = %v, want %v", err, cause)
	}
	if _, ok := v.Poll(); ok {
		t.Error("Poll() on failed variable reported a value")
	}
	if err := v.Bind("x"); !errors.Is(err, dataflow.ErrAlreadyBound) {
		t.Errorf("Bind after BindError error = %v, want ErrAlreadyBound", err)
	}
}

func TestVariableConcurrentReadersSeeSameValue(t *testing.T) {
	v := dataflow.NewVariable[int]()
	const readers = 16

	results := make(chan int, readers)
	var wg sync.WaitGroup
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := v.Read(context.Background())
			if err != nil {
				t.Errorf("Read() error = %v", err)
			}
			results <- value
		}()
	}

	if err := v.Bind(99); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	wg.Wait()
	close(results)
	for value := range results {
		if value != 99 {
			t.Errorf("reader saw %d, want 99", value)
		}
	}
}

func TestVariableConcurrentEqualBind(t *testing.T) {
	v := dataflow.NewVariable[int]()
	const binders = 8

	errs := make(chan error, binders)
	var wg sync.WaitGroup
	for range binders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- v.Bind(5)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent equal Bind error = %v", err)
		}
	}
}

func TestVariablePoll(t *testing.T) {
	v := dataflow.NewVariable[int]()
	if _, ok := v.Poll(); ok {
		t.Error("Poll() on unbound variable reported a value")
	}
	if v.IsBound() {
		t.Error("IsBound() on unbound variable = true")
	}

	if err := v.Bind(3); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	value, ok := v.Poll()
	if !ok || value != 3 {
		t.Errorf("Poll() = %d, %v, want 3, true", value, ok)
	}
	if !v.IsBound() {
		t.Error("IsBound() after Bind = false")
	}
}

func TestVariableTryRead(t *testing.T) {
	v := dataflow.NewVariable[int]()

	if _, ok, _ := v.TryRead(20 * time.Millisecond); ok {
		t.Error("TryRead on unbound variable reported a value")
	}
	// Timeout must not alter the cell.
	if err := v.Bind(11); err != nil {
		t.Fatalf("Bind after timed-out TryRead error = %v", err)
	}
	value, ok, err := v.TryRead(time.Second)
	if !ok || err != nil || value != 11 {
		t.Errorf("TryRead = %d, %v, %v, want 11, true, nil", value, ok, err)
	}
}

func TestVariableReadCancellation(t *testing.T) {
	v := dataflow.NewVariable[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := v.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read error = %v, want DeadlineExceeded", err)
	}
	// Cancellation leaves the cell bindable.
	if err := v.Bind(1); err != nil {
		t.Errorf("Bind after cancelled Read error = %v", err)
	}
}

func TestVariableHandlerRegistrationOrder(t *testing.T) {
	sched := &serialScheduler{}
	v := dataflow.NewVariable[int](dataflow.WithScheduler(sched))

	var order []int
	for i := range 5 {
		i := i
		v.WhenBound(func(int, error) { order = append(order, i) })
	}
	if err := v.Bind(1); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	sched.Run()

	for i, got := range order {
		if got != i {
			t.Fatalf("handler order = %v, want registration order", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("ran %d handlers, want 5", len(order))
	}
}

func TestVariableWhenBoundAfterTerminal(t *testing.T) {
	v := dataflow.NewVariable[int]()
	if err := v.Bind(42); err != nil {
		t.Fatalf("Bind error = %v", err)
	}

	got := make(chan int, 1)
	v.WhenBound(func(value int, err error) {
		if err != nil {
			t.Errorf("handler error = %v", err)
		}
		got <- value
	})

	select {
	case value := <-got:
		if value != 42 {
			t.Errorf("handler saw %d, want 42", value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late handler never scheduled")
	}
}

func TestThenChain(t *testing.T) {
	v := dataflow.NewVariable[int]()
	doubled := dataflow.Then(v, func(x int) (int, error) { return x * 2, nil })
	plusOne := dataflow.Then(doubled, func(x int) (int, error) { return x + 1, nil })

	if err := v.Bind(10); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	value, err := plusOne.Read(context.Background())
	if err != nil || value != 21 {
		t.Errorf("chain result = %d, %v, want 21, nil", value, err)
	}
}

func TestThenErrorPropagation(t *testing.T) {
	cause := errors.New("upstream failed")
	v := dataflow.NewVariable[int]()
	f := dataflow.Then(v, func(x int) (int, error) { return x * 2, nil })
	g := dataflow.Then(f, func(x int) (int, error) { return x + 1, nil })

	if err := v.BindError(cause); err != nil {
		t.Fatalf("BindError error = %v", err)
	}
	if _, err := g.Read(context.Background()); !errors.Is(err, cause) {
		t.Errorf("chain error = %v, want %v", err, cause)
	}
}

func TestThenErrorRecovery(t *testing.T) {
	cause := errors.New("boom")
	v := dataflow.NewVariable[int]()
	recovered := dataflow.Then(v,
		func(x int) (int, error) { return x, nil },
		func(err error) (int, error) { return -1, nil },
	)

	if err := v.BindError(cause); err != nil {
		t.Fatalf("BindError error = %v", err)
	}
	value, err := recovered.Read(context.Background())
	if err != nil || value != -1 {
		t.Errorf("recovered = %d, %v, want -1, nil", value, err)
	}
}

func TestThenErrorHandlerFailure(t *testing.T) {
	v := dataflow.NewVariable[int]()
	replaced := errors.New("replaced")
	r := dataflow.Then(v,
		func(x int) (int, error) { return x, nil },
		func(err error) (int, error) { return 0, replaced },
	)

	if err := v.BindError(errors.New("original")); err != nil {
		t.Fatalf("BindError error = %v", err)
	}
	if _, err := r.Read(context.Background()); !errors.Is(err, replaced) {
		t.Errorf("error = %v, want %v", err, replaced)
	}
}

func TestThenPanicBecomesFailure(t *testing.T) {
	v := dataflow.NewVariable[int]()
	// 100/x panics for x == 0; the chain must observe the failure rather
	// than crash.
	divided := dataflow.Then(
		dataflow.Then(v, func(x int) (int, error) { return x * 2, nil }),
		func(x int) (int, error) { return 100 / x, nil },
	)

	if err := v.Bind(0); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	_, err := divided.Read(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Errorf("error = %v, want handler panic failure", err)
	}
}

func TestThenFlattening(t *testing.T) {
	v := dataflow.NewVariable[int]()
	inner := dataflow.NewVariable[any]()

	flat := dataflow.Then(v, func(x int) (any, error) { return inner, nil })

	if err := v.Bind(1); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	if err := inner.Bind("flattened"); err != nil {
		t.Fatalf("inner Bind error = %v", err)
	}

	value, err := flat.Read(context.Background())
	if err != nil || value != "flattened" {
		t.Errorf("flattened = %v, %v, want flattened, nil", value, err)
	}
}

func TestApply(t *testing.T) {
	v := dataflow.NewVariable[string]()
	upper := dataflow.Apply(v, strings.ToUpper)

	if err := v.Bind("hello"); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	value, err := upper.Read(context.Background())
	if err != nil || value != "HELLO" {
		t.Errorf("Apply = %q, %v, want HELLO, nil", value, err)
	}
}

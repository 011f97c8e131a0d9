package dataflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/agentstation/dataflow"
)

func TestMemoizeCachesResults(t *testing.T) {
	var calls atomic.Int32
	square, err := dataflow.Memoize(nil, 8, func(x int) (int, error) {
		calls.Add(1)
		return x * x, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		got, err := square(5).Read(context.Background())
		if err != nil || got != 25 {
			t.Fatalf("square(5) = %d, %v, want 25, nil", got, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("f ran %d times for one argument, want 1", n)
	}
}

func TestMemoizeConcurrentCallersShareComputation(t *testing.T) {
	var calls atomic.Int32
	slow, err := dataflow.Memoize(nil, 4, func(x int) (int, error) {
		calls.Add(1)
		return x + 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := slow(1).Read(context.Background())
			if err != nil || got != 2 {
				t.Errorf("slow(1) = %d, %v, want 2, nil", got, err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("f ran %d times under concurrent callers, want 1", n)
	}
}

func TestMemoizeEvictsLeastRecentlyUsed(t *testing.T) {
	var calls atomic.Int32
	ident, err := dataflow.Memoize(nil, 2, func(x int) (int, error) {
		calls.Add(1)
		return x, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, x := range []int{1, 2, 3} {
		if _, err := ident(x).Read(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// 1 was evicted by 3; asking again recomputes.
	if _, err := ident(1).Read(ctx); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 4 {
		t.Errorf("f ran %d times, want 4 (recompute after eviction)", n)
	}
}

func TestMemoizeErrorsAreCached(t *testing.T) {
	var calls atomic.Int32
	cause := errors.New("lookup failed")
	f, err := dataflow.Memoize(nil, 4, func(x int) (int, error) {
		calls.Add(1)
		return 0, cause
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for range 2 {
		if _, err := f(1).Read(ctx); !errors.Is(err, cause) {
			t.Errorf("f(1) error = %v, want %v", err, cause)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("failed computation ran %d times, want 1", n)
	}
}

func TestMemoizeInvalidCapacity(t *testing.T) {
	if _, err := dataflow.Memoize(nil, 0, func(int) (int, error) { return 0, nil }); err == nil {
		t.Error("Memoize with capacity 0 did not fail")
	}
}

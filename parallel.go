package dataflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// defaultConcurrency bounds the parallel collection helpers unless
// overridden with WithConcurrency.
const defaultConcurrency = 10

// errStop short-circuits an errgroup once the answer is known.
var errStop = errors.New("dataflow: stop")

func workerCount(cfg config, items int) int {
	n := cfg.concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	if n > items {
		n = items
	}
	return n
}

// ParallelMap applies fn to every item concurrently and returns the results
// in input order. Failures do not cancel the remaining items; they are
// aggregated into a *CompoundError wrapping each failed item's index. The
// partial results are returned alongside the error.
func ParallelMap[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), opts ...Option) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	cfg := newConfig(opts)

	results := make([]R, len(items))
	errs := make([]error, len(items))

	work := make(chan int, len(items))
	for i := range items {
		work <- i
	}
	close(work)

	// Item failures are collected per index rather than propagated as the
	// group error, so one bad item never cancels the rest.
	var g errgroup.Group
	for w := 0; w < workerCount(cfg, len(items)); w++ {
		g.Go(func() error {
			for idx := range work {
				if err := ctx.Err(); err != nil {
					errs[idx] = fmt.Errorf("item %d: %w", idx, err)
					continue
				}
				out, err := fn(ctx, items[idx])
				if err != nil {
					errs[idx] = fmt.Errorf("item %d: %w", idx, err)
					continue
				}
				results[idx] = out
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return results, &CompoundError{Errors: failed}
	}
	return results, nil
}

// ParallelFilter evaluates pred over every item concurrently and returns
// the items it accepts, preserving input order. Failures aggregate as in
// ParallelMap.
func ParallelFilter[T any](ctx context.Context, items []T, pred func(context.Context, T) (bool, error), opts ...Option) ([]T, error) {
	keep, err := ParallelMap(ctx, items, pred, opts...)
	if err != nil {
		return nil, err
	}
	var filtered []T
	for i, ok := range keep {
		if ok {
			filtered = append(filtered, items[i])
		}
	}
	return filtered, nil
}

// ParallelFind returns some item satisfying pred, cancelling the remaining
// evaluations once a match is found. Which match wins is nondeterministic.
// A pred failure aborts the search and is returned.
func ParallelFind[T any](ctx context.Context, items []T, pred func(context.Context, T) (bool, error), opts ...Option) (T, bool, error) {
	var (
		zero  T
		mu    sync.Mutex
		found bool
		match T
	)
	if len(items) == 0 {
		return zero, false, nil
	}
	cfg := newConfig(opts)

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan int, len(items))
	for i := range items {
		work <- i
	}
	close(work)

	for w := 0; w < workerCount(cfg, len(items)); w++ {
		g.Go(func() error {
			for idx := range work {
				if gctx.Err() != nil {
					return nil
				}
				ok, err := pred(gctx, items[idx])
				if err != nil {
					return fmt.Errorf("item %d: %w", idx, err)
				}
				if ok {
					mu.Lock()
					if !found {
						found = true
						match = items[idx]
					}
					mu.Unlock()
					return errStop
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, errStop) {
		return zero, false, err
	}
	mu.Lock()
	defer mu.Unlock()
	return match, found, nil
}

// ParallelAll reports whether pred holds for every item, short-circuiting
// on the first violation.
func ParallelAll[T any](ctx context.Context, items []T, pred func(context.Context, T) (bool, error), opts ...Option) (bool, error) {
	_, violated, err := ParallelFind(ctx, items, func(ctx context.Context, item T) (bool, error) {
		ok, err := pred(ctx, item)
		return !ok, err
	}, opts...)
	if err != nil {
		return false, err
	}
	return !violated, nil
}

// ParallelAny reports whether pred holds for some item, short-circuiting on
// the first match.
func ParallelAny[T any](ctx context.Context, items []T, pred func(context.Context, T) (bool, error), opts ...Option) (bool, error) {
	_, found, err := ParallelFind(ctx, items, pred, opts...)
	if err != nil {
		return false, err
	}
	return found, nil
}

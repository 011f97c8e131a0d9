/*
Package dataflow provides deterministic, thread-safe coordination primitives
for exchanging values between concurrent tasks without explicit locking.

Key features:
  - Single-assignment variables with blocking reads and async handlers
  - Point-to-point and broadcast channels with FIFO delivery
  - Non-deterministic select over heterogeneous channels with guards
  - Promise-style composition: Then chains, WhenAllBound, Task
  - Bounded LRU storage and memoization of pure functions
  - Parallel collection helpers with aggregated failures

Basic usage:

	// Bind a value from one goroutine, read it from another.
	v := dataflow.NewVariable[int]()
	go func() { _ = v.Bind(42) }()
	got, err := v.Read(context.Background())

Channels:

	q := dataflow.NewQueue[string]()
	q.Write("a")
	q.Write("b")
	first, _ := q.Read(ctx) // "a"

	b := dataflow.NewBroadcast[string]()
	s1 := b.CreateReadChannel()
	s2 := b.CreateReadChannel()
	b.Write("news") // both s1 and s2 receive it

Selecting the first ready channel:

	sel := dataflow.NewSelect(nil, q1, q2)
	res, err := sel.Select(ctx) // res.Index, res.Value

Composition:

	doubled := dataflow.Then(v, func(x int) (int, error) { return x * 2, nil })
	sum := dataflow.WhenAllBound(nil, []*dataflow.Variable[int]{a, b},
		func(xs []int) (int, error) { return xs[0] + xs[1], nil })

Every handler runs through a Scheduler, never inline on the binding
goroutine. The default scheduler runs each handler on its own goroutine;
install a different one process-wide with Init or per primitive with
WithScheduler.

The yaml subpackage materializes schedulers, channels and memoizers from
declarative network definitions.
*/
package dataflow

package dataflow

// Memoize wraps a pure function in a bounded cache of in-flight and
// completed results. The returned function hands back a variable per
// argument: the first caller for an argument installs an unbound variable
// and schedules the computation, so concurrent callers for the same
// argument share a single invocation of f. Hits bump the entry's recency;
// the least recently used entry is evicted when capacity entries are live.
//
// A nil scheduler uses the process-wide default. Returns an error if
// capacity < 1.
func Memoize[A comparable, R any](sched Scheduler, capacity int, f func(A) (R, error)) (func(A) *Variable[R], error) {
	if sched == nil {
		sched = DefaultScheduler()
	}
	storage, err := NewProtectionStorage[A, *Variable[R]](capacity)
	if err != nil {
		return nil, err
	}

	return func(arg A) *Variable[R] {
		storage.mu.Lock()
		if v, ok := storage.lru.Get(arg); ok {
			storage.mu.Unlock()
			return v
		}
		v := NewVariable[R](WithScheduler(sched))
		storage.lru.Add(arg, v)
		storage.mu.Unlock()

		sched.Submit(func() {
			out, err := callHandler1(f, arg)
			bindOutcome(v, out, err)
		})
		return v
	}, nil
}

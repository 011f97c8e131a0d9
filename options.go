package dataflow

// config holds configuration shared by the primitive constructors.
type config struct {
	sched       Scheduler
	capacity    int
	concurrency int
}

// Option configures a primitive constructor.
type Option func(*config)

// WithScheduler sets the scheduler used for handler dispatch. Primitives
// without an explicit scheduler fall back to the process-wide default.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		c.sched = s
	}
}

// WithCapacity bounds a queue's buffer (its Write blocks while full) or a
// pool's task queue.
//
// Panics if n < 1.
func WithCapacity(n int) Option {
	if n < 1 {
		panic("dataflow: WithCapacity requires n >= 1")
	}
	return func(c *config) {
		c.capacity = n
	}
}

// WithConcurrency sets the maximum number of concurrent workers used by the
// parallel collection helpers. The default is 10.
//
// Panics if n < 1.
func WithConcurrency(n int) Option {
	if n < 1 {
		panic("dataflow: WithConcurrency requires n >= 1")
	}
	return func(c *config) {
		c.concurrency = n
	}
}

func newConfig(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// scheduler resolves the configured scheduler, falling back to the default.
func (c config) scheduler() Scheduler {
	if c.sched != nil {
		return c.sched
	}
	return DefaultScheduler()
}

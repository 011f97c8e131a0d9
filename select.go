package dataflow

import (
	"context"
	"math/rand/v2"
	"sync"
)

// SelectableChannel is the read-side contract Select consumes. Variable,
// Queue and Broadcast read-views all implement it. PollAny must never block
// and must not call back into the select while holding channel-internal
// locks; channel locks are leaves under the select lock.
type SelectableChannel interface {
	// PollAny returns an available value without blocking.
	PollAny() (any, bool)

	// WheneverAvailable registers a callback notified (via the channel's
	// scheduler) whenever a value becomes available.
	WheneverAvailable(f func())

	// SingleAssignment marks channels that must be consumed at most once
	// by any select over them.
	SingleAssignment() bool
}

// SelectResult is the outcome of a select: the index of the chosen channel
// and the value consumed from it.
type SelectResult struct {
	Index int
	Value any
}

// Select is a non-deterministic choice over a fixed, ordered set of
// channels: each request receives the first available value from a channel
// its guard mask accepts. Single-assignment channels are disabled once
// consumed, so no later request can pick them again. Requests that cannot
// be satisfied immediately are queued and served in registration order as
// values arrive.
type Select struct {
	mu       sync.Mutex
	channels []SelectableChannel
	disabled []bool
	pending  []*selectRequest
	sched    Scheduler
}

// selectRequest holds one caller's guards and one-shot result slot.
type selectRequest struct {
	mask   []bool // nil accepts every channel
	result *Variable[SelectResult]
}

func (r *selectRequest) matches(i int) bool {
	return r.mask == nil || r.mask[i]
}

// NewSelect builds a select over channels, registering an availability
// callback on each. Panics if channels is empty.
func NewSelect(sched Scheduler, channels ...SelectableChannel) *Select {
	if len(channels) == 0 {
		panic("dataflow: NewSelect requires at least one channel")
	}
	if sched == nil {
		sched = DefaultScheduler()
	}
	s := &Select{
		channels: channels,
		disabled: make([]bool, len(channels)),
		sched:    sched,
	}
	for i, ch := range channels {
		i, ch := i, ch
		ch.WheneverAvailable(func() { s.boundNotification(i, ch) })
	}
	return s
}

// boundNotification runs on channel availability. It scans the pending
// requests in registration order and serves the first one whose mask
// accepts the ready channel, provided its poll still yields a value.
func (s *Select) boundNotification(index int, ch SelectableChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pi, req := range s.pending {
		if !req.matches(index) || s.disabled[index] {
			continue
		}
		value, ok := ch.PollAny()
		if !ok {
			return
		}
		s.pending = append(s.pending[:pi:pi], s.pending[pi+1:]...)
		if ch.SingleAssignment() {
			s.disabled[index] = true
		}
		// Bind only schedules the request's continuation; no handler
		// runs under the select lock.
		_ = req.result.Bind(SelectResult{Index: index, Value: value})
		return
	}
}

// doSelect attempts a synchronous pick starting at startIndex (-1 requests
// a uniformly random start) and otherwise queues the request.
func (s *Select) doSelect(startIndex int, req *selectRequest) {
	n := len(s.channels)
	start := startIndex
	if start == -1 {
		start = rand.IntN(n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k := 0; k < n; k++ {
		i := (start + k) % n
		if !req.matches(i) || s.disabled[i] {
			continue
		}
		value, ok := s.channels[i].PollAny()
		if !ok {
			continue
		}
		if s.channels[i].SingleAssignment() {
			s.disabled[i] = true
		}
		_ = req.result.Bind(SelectResult{Index: i, Value: value})
		return
	}
	s.pending = append(s.pending, req)
}

// unregister drops an abandoned request so that a later value is not
// consumed on its behalf.
func (s *Select) unregister(req *selectRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cand := range s.pending {
		if cand == req {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Select) run(ctx context.Context, startIndex int, mask []bool) (SelectResult, error) {
	if mask != nil {
		if len(mask) != len(s.channels) {
			return SelectResult{}, ErrGuardMismatch
		}
		// Callers may reuse their mask; snapshot it.
		cp := make([]bool, len(mask))
		copy(cp, mask)
		mask = cp
	}
	req := &selectRequest{
		mask:   mask,
		result: NewVariable[SelectResult](WithScheduler(s.sched)),
	}
	s.doSelect(startIndex, req)

	res, err := req.result.Read(ctx)
	if err != nil {
		s.unregister(req)
		// The notification path may have served the request between the
		// cancellation and the unregister.
		if late, ok := req.result.Poll(); ok {
			return late, nil
		}
		return SelectResult{}, err
	}
	return res, nil
}

// Select returns the next available value from any channel, scanning from a
// uniformly random start position to avoid starving later channels.
func (s *Select) Select(ctx context.Context) (SelectResult, error) {
	return s.run(ctx, -1, nil)
}

// SelectWithGuards is Select restricted to the channels whose mask entry is
// true. The mask must cover every channel.
func (s *Select) SelectWithGuards(ctx context.Context, mask []bool) (SelectResult, error) {
	return s.run(ctx, -1, mask)
}

// Prioritized is Select with a deterministic scan from channel 0, biasing
// the pick toward earlier channels.
func (s *Select) Prioritized(ctx context.Context) (SelectResult, error) {
	return s.run(ctx, 0, nil)
}

// PrioritizedWithGuards combines Prioritized scanning with a guard mask.
func (s *Select) PrioritizedWithGuards(ctx context.Context, mask []bool) (SelectResult, error) {
	return s.run(ctx, 0, mask)
}

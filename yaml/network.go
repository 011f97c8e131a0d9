package yaml

import (
	"fmt"
	"runtime"

	"github.com/agentstation/dataflow"
)

// Network holds the live primitives materialized from a Definition: one
// scheduler, the named channels and the named memoizer storages. Channel
// payloads are untyped; typed networks are built in code.
type Network struct {
	name  string
	sched dataflow.Scheduler
	pool  *dataflow.Pool

	variables  map[string]*dataflow.Variable[any]
	queues     map[string]*dataflow.Queue[any]
	broadcasts map[string]*dataflow.Broadcast[any]
	storages   map[string]*dataflow.ProtectionStorage[string, any]
}

// Build materializes the definition into a Network.
func (d *Definition) Build() (*Network, error) {
	n := &Network{
		name:       d.Name,
		variables:  make(map[string]*dataflow.Variable[any]),
		queues:     make(map[string]*dataflow.Queue[any]),
		broadcasts: make(map[string]*dataflow.Broadcast[any]),
		storages:   make(map[string]*dataflow.ProtectionStorage[string, any]),
	}

	switch d.Scheduler.Kind {
	case "", "go":
		n.sched = dataflow.GoScheduler{}
	case "limited":
		size := d.Scheduler.Size
		if size == 0 {
			size = runtime.NumCPU()
		}
		n.sched = dataflow.NewLimitedScheduler(int64(size))
	case "pool":
		size := d.Scheduler.Size
		if size == 0 {
			size = runtime.NumCPU()
		}
		var opts []dataflow.Option
		if d.Scheduler.Queue > 0 {
			opts = append(opts, dataflow.WithCapacity(d.Scheduler.Queue))
		}
		n.pool = dataflow.NewPool(size, opts...)
		n.sched = n.pool
	default:
		return nil, fmt.Errorf("unknown scheduler kind %q", d.Scheduler.Kind)
	}

	for _, c := range d.Channels {
		if n.has(c.Name) {
			return nil, fmt.Errorf("duplicate channel %q", c.Name)
		}
		switch c.Kind {
		case "variable":
			n.variables[c.Name] = dataflow.NewVariable[any](dataflow.WithScheduler(n.sched))
		case "queue":
			opts := []dataflow.Option{dataflow.WithScheduler(n.sched)}
			if c.Capacity > 0 {
				opts = append(opts, dataflow.WithCapacity(c.Capacity))
			}
			n.queues[c.Name] = dataflow.NewQueue[any](opts...)
		case "broadcast":
			n.broadcasts[c.Name] = dataflow.NewBroadcast[any](dataflow.WithScheduler(n.sched))
		default:
			return nil, fmt.Errorf("channel %q: unknown kind %q", c.Name, c.Kind)
		}
	}

	for _, m := range d.Memoizers {
		if _, dup := n.storages[m.Name]; dup {
			return nil, fmt.Errorf("duplicate memoizer %q", m.Name)
		}
		storage, err := dataflow.NewProtectionStorage[string, any](m.Capacity)
		if err != nil {
			return nil, fmt.Errorf("memoizer %q: %w", m.Name, err)
		}
		n.storages[m.Name] = storage
	}

	return n, nil
}

func (n *Network) has(name string) bool {
	if _, ok := n.variables[name]; ok {
		return true
	}
	if _, ok := n.queues[name]; ok {
		return true
	}
	_, ok := n.broadcasts[name]
	return ok
}

// Name returns the definition's name.
func (n *Network) Name() string {
	return n.name
}

// Scheduler returns the network's scheduler.
func (n *Network) Scheduler() dataflow.Scheduler {
	return n.sched
}

// Variable returns the named single-assignment variable.
func (n *Network) Variable(name string) (*dataflow.Variable[any], bool) {
	v, ok := n.variables[name]
	return v, ok
}

// Queue returns the named point-to-point channel.
func (n *Network) Queue(name string) (*dataflow.Queue[any], bool) {
	q, ok := n.queues[name]
	return q, ok
}

// Broadcast returns the named broadcast channel.
func (n *Network) Broadcast(name string) (*dataflow.Broadcast[any], bool) {
	b, ok := n.broadcasts[name]
	return b, ok
}

// Storage returns the named memoizer storage.
func (n *Network) Storage(name string) (*dataflow.ProtectionStorage[string, any], bool) {
	s, ok := n.storages[name]
	return s, ok
}

// Selectable returns the named channel as a select input. Broadcast
// channels are not directly selectable; select over one of their
// read-views instead.
func (n *Network) Selectable(name string) (dataflow.SelectableChannel, bool) {
	if v, ok := n.variables[name]; ok {
		return v, true
	}
	if q, ok := n.queues[name]; ok {
		return q, true
	}
	return nil, false
}

// Select builds a select over the named channels, in the given order.
func (n *Network) Select(names ...string) (*dataflow.Select, error) {
	channels := make([]dataflow.SelectableChannel, len(names))
	for i, name := range names {
		ch, ok := n.Selectable(name)
		if !ok {
			return nil, fmt.Errorf("no selectable channel %q", name)
		}
		channels[i] = ch
	}
	return dataflow.NewSelect(n.sched, channels...), nil
}

// Close releases the network's pool scheduler, if it has one.
func (n *Network) Close() {
	if n.pool != nil {
		n.pool.Close()
	}
}

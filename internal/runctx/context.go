// Package runctx implements the Context component of spec.md §3: the
// mutable set of processors available to a single compute() run, plus the
// round-robin selection queue that rides alongside it.
package runctx

import (
	"sync"

	"github.com/rs/zerolog"

	"thunkgraph/internal/processor"
)

// Event is something write_event(ctx, event) records. Concrete event
// shapes are left to callers; this package only fans them out to the
// logger. Neither the scheduler nor the control plane posts events here.
type Event struct {
	Kind    string
	Fields  map[string]any
}

// Context is the mutable set of processors considered for dispatch in a
// run. Mutation (Addprocs/Rmprocs) is serialized by its own lock, distinct
// from the scheduler's state-store lock, per spec.md §5 ("the context's
// processor list [is] guarded by their own lock").
type Context struct {
	mu    sync.Mutex
	procs []processor.Processor
	rr    *processor.RoundRobin
	log   zerolog.Logger
}

// New creates a Context rooted at the given processors.
func New(log zerolog.Logger, roots ...processor.Processor) *Context {
	c := &Context{procs: append([]processor.Processor(nil), roots...), log: log}
	c.rebuildLocked()
	return c
}

func (c *Context) rebuildLocked() {
	// The round-robin queue is flattened across every root, concatenated in
	// root order, then reset — topology changes always invalidate rotation
	// state (spec.md Design Notes).
	var all []processor.Processor
	for _, r := range c.procs {
		all = append(all, processor.Flatten(r)...)
	}
	c.rr = processor.NewRoundRobin(aggregateRoot(all))
}

// aggregateRoot wraps a flattened leaf slice in a synthetic processor whose
// Children() is exactly that slice, so NewRoundRobin's Flatten call
// degenerates into "use this slice verbatim".
type fixedRoot struct {
	processor.Base
	leaves []processor.Processor
}

func (f fixedRoot) Children() []processor.Processor { return f.leaves }

func aggregateRoot(leaves []processor.Processor) processor.Processor {
	return fixedRoot{leaves: leaves}
}

// Procs returns a snapshot of the current processor roots.
func (c *Context) Procs() []processor.Processor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]processor.Processor, len(c.procs))
	copy(out, c.procs)
	return out
}

// RoundRobin returns the context's shared round-robin selector.
func (c *Context) RoundRobin() *processor.RoundRobin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rr
}

// FindProcessor locates a registered processor (root, intermediate, or
// leaf) by id, searching every root's full subtree. Used by the scheduler
// to resolve a Chunk's recorded ProcessorID back into a Processor it can
// call Move on.
func (c *Context) FindProcessor(id processor.ID) (processor.Processor, bool) {
	c.mu.Lock()
	roots := append([]processor.Processor(nil), c.procs...)
	c.mu.Unlock()

	for _, root := range roots {
		if p, ok := findIn(root, id); ok {
			return p, true
		}
	}
	return nil, false
}

func findIn(p processor.Processor, id processor.ID) (processor.Processor, bool) {
	if p == nil {
		return nil, false
	}
	if p.ID() == id {
		return p, true
	}
	for _, child := range p.Children() {
		if found, ok := findIn(child, id); ok {
			return found, true
		}
	}
	return nil, false
}

// Lock runs body while holding the context's processor-list lock, mirroring
// lock(ctx, body) from spec.md §6.
func (c *Context) Lock(body func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body()
}

// Addprocs adds processor roots and resets the round-robin queue.
func (c *Context) Addprocs(roots ...processor.Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.procs = append(c.procs, roots...)
	c.rebuildLocked()
}

// Rmprocs removes processor roots by id and resets the round-robin queue.
func (c *Context) Rmprocs(ids ...processor.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remove := make(map[processor.ID]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := c.procs[:0:0]
	for _, p := range c.procs {
		if _, drop := remove[p.ID()]; !drop {
			kept = append(kept, p)
		}
	}
	c.procs = kept
	c.rebuildLocked()
}

// WriteEvent records an event to the context's logger.
func (c *Context) WriteEvent(e Event) {
	ev := c.log.Info().Str("kind", e.Kind)
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("event")
}

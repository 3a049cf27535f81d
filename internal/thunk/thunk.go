// Package thunk defines the immutable unit-of-work descriptor the scheduler
// dispatches: a function plus an ordered list of inputs, each either a
// literal value or a reference to another thunk's result.
package thunk

import (
	"context"
	"sync/atomic"
)

// ID is a process-unique monotonic handle, safe to send across the control
// channel (spec's ThunkID).
type ID int64

// Func is the user work a Thunk wraps. args has already been resolved: every
// Ref input has been replaced by its materialized value or Chunk.
type Func func(ctx context.Context, args []any) (any, error)

var nextID atomic.Int64

// NextID returns the next process-unique thunk id.
func NextID() ID {
	return ID(nextID.Add(1))
}

// Input is either a Literal or a Ref to another Thunk's output.
type Input interface {
	isInput()
}

// Literal is a plain value input, already resolved.
type Literal struct {
	Value any
}

func (Literal) isInput() {}

// Ref is an input referencing another thunk's result by id.
type Ref struct {
	ID ID
}

func (Ref) isInput() {}

// ProclistPredicate decides whether a candidate processor kind is acceptable
// for a thunk. Kind is opaque to this package (see internal/processor).
type ProclistPredicate func(kind string) bool

// Proclist restricts which processor kinds may run a thunk. Exactly one of
// the fields should be set; the zero value means "unset" (opt-out default
// selection applies).
type Proclist struct {
	Predicate ProclistPredicate
	Kinds     []string
}

// IsZero reports whether no proclist restriction was specified.
func (p Proclist) IsZero() bool {
	return p.Predicate == nil && len(p.Kinds) == 0
}

// Options are the keyword options recognized on a thunk or compute call.
// Unknown options (e.g. decoded from an external document) are ignored by
// callers, not by this struct.
type Options struct {
	// Single pins the thunk to a specific worker/process id. Empty means
	// unpinned.
	Single string

	Proclist Proclist

	GetResult bool
	Meta      any
	Persist   bool

	// Cache opts this thunk into intra-run memoization, keyed by CacheKey.
	// Persist carries no cross-run meaning here (see internal/cache):
	// memoization is scoped to a single compute() call, per spec.md's
	// Non-goals on cross-run persistence.
	Cache    bool
	CacheKey string
}

// Thunk is immutable after creation except for the scheduler's own
// bookkeeping references (held externally in internal/store, never on this
// struct). Equality is by ID.
type Thunk struct {
	ID      ID
	Func    Func
	Inputs  []Input
	Options Options

	// Label is a human-readable name, used for logging and CLI display only.
	Label string
}

// New creates a Thunk with a freshly allocated id.
func New(f Func, inputs []Input, opts Options) *Thunk {
	return &Thunk{ID: NextID(), Func: f, Inputs: inputs, Options: opts}
}

// Equal reports whether two thunks are the same by id.
func (t *Thunk) Equal(o *Thunk) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.ID == o.ID
}

// Refs returns the subset of Inputs that reference other thunks.
func (t *Thunk) Refs() []ID {
	var out []ID
	for _, in := range t.Inputs {
		if r, ok := in.(Ref); ok {
			out = append(out, r.ID)
		}
	}
	return out
}

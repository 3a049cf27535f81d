// Package processor models the abstract compute resources thunks run on: a
// tree of processors (root "process" processors enumerating child
// processors such as threads or accelerators), a capability table used for
// compatibility testing, and the round-robin selection policy of spec.md
// §4.3.
package processor

import (
	"context"

	"thunkgraph/internal/thunk"
)

// ID identifies a single processor instance cluster-wide.
type ID = thunk.ProcessorID

// Processor is the plug-in interface third-party processors must supply
// (spec.md §6). Default (embedded) implementations return false/nil for
// everything compatibility- or topology-related, so every concrete
// processor type must opt in explicitly — unknown processors are
// incompatible with everything by default.
type Processor interface {
	ID() ID
	Kind() string

	IscompatibleFunc(f thunk.Func) bool
	IscompatibleArg(x any) bool
	DefaultEnabled() bool

	Execute(ctx context.Context, f thunk.Func, args []any) (any, error)
	Move(ctx context.Context, to Processor, c thunk.Chunk) (thunk.Chunk, error)

	Children() []Processor
	Parent() Processor
}

// Base gives concrete processor types the spec's default-deny behavior for
// free; embed it and override only what the processor actually supports.
type Base struct {
	IDValue     ID
	KindValue   string
	ParentValue Processor
}

func (b Base) ID() ID      { return b.IDValue }
func (b Base) Kind() string { return b.KindValue }

func (Base) IscompatibleFunc(thunk.Func) bool { return false }
func (Base) IscompatibleArg(any) bool         { return false }
func (Base) DefaultEnabled() bool             { return false }

func (Base) Execute(context.Context, thunk.Func, []any) (any, error) {
	return nil, ErrUnsupported
}

func (Base) Move(context.Context, Processor, thunk.Chunk) (thunk.Chunk, error) {
	return thunk.Chunk{}, ErrUnsupported
}

func (Base) Children() []Processor { return nil }
func (b Base) Parent() Processor   { return b.ParentValue }

// Compatible is the conjunction test of spec.md §4.3: iscompatible_func AND
// iscompatible_arg for every argument.
func Compatible(p Processor, f thunk.Func, args []any) bool {
	if !p.IscompatibleFunc(f) {
		return false
	}
	for _, a := range args {
		if !p.IscompatibleArg(a) {
			return false
		}
	}
	return true
}

// Flatten walks the processor tree rooted at p (inclusive) and returns every
// leaf processor (one with no children) in deterministic pre-order.
func Flatten(p Processor) []Processor {
	if p == nil {
		return nil
	}
	children := p.Children()
	if len(children) == 0 {
		return []Processor{p}
	}
	var out []Processor
	for _, c := range children {
		out = append(out, Flatten(c)...)
	}
	return out
}

package scheduler

import (
	"context"

	"thunkgraph/internal/thunk"
)

// Lifecycle is the optional synchronous hook set around a run, adapted from
// the teacher's dag.LifecycleHooks: hooks must be inert (no panic, return
// quickly) and a failing/panicking hook never aborts the run itself.
type Lifecycle interface {
	BeforeRun(ctx context.Context)
	AfterRun(ctx context.Context)
	BeforeNode(ctx context.Context, id thunk.ID)
	AfterNode(ctx context.Context, id thunk.ID)
}

// NopLifecycle implements Lifecycle with no-ops; it's the default when a
// caller doesn't supply hooks.
type NopLifecycle struct{}

func (NopLifecycle) BeforeRun(context.Context)          {}
func (NopLifecycle) AfterRun(context.Context)           {}
func (NopLifecycle) BeforeNode(context.Context, thunk.ID) {}
func (NopLifecycle) AfterNode(context.Context, thunk.ID)  {}

// safeLifecycle wraps a Lifecycle so a panicking hook never takes down the
// scheduler loop, matching the teacher's "hooks must be inert... the
// engine will continue regardless of hook failures" guarantee.
type safeLifecycle struct {
	inner Lifecycle
	onPanic func(hook string, r any)
}

func newSafeLifecycle(inner Lifecycle, onPanic func(hook string, r any)) safeLifecycle {
	if inner == nil {
		inner = NopLifecycle{}
	}
	return safeLifecycle{inner: inner, onPanic: onPanic}
}

func (s safeLifecycle) run(hook string, body func()) {
	defer func() {
		if r := recover(); r != nil && s.onPanic != nil {
			s.onPanic(hook, r)
		}
	}()
	body()
}

func (s safeLifecycle) BeforeRun(ctx context.Context) {
	s.run("BeforeRun", func() { s.inner.BeforeRun(ctx) })
}

func (s safeLifecycle) AfterRun(ctx context.Context) {
	s.run("AfterRun", func() { s.inner.AfterRun(ctx) })
}

func (s safeLifecycle) BeforeNode(ctx context.Context, id thunk.ID) {
	s.run("BeforeNode", func() { s.inner.BeforeNode(ctx, id) })
}

func (s safeLifecycle) AfterNode(ctx context.Context, id thunk.ID) {
	s.run("AfterNode", func() { s.inner.AfterNode(ctx, id) })
}

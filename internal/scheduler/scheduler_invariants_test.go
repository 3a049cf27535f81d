package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"thunkgraph/internal/control"
	"thunkgraph/internal/failure"
	"thunkgraph/internal/thunk"
)

// TestInvariantCacheEntryOnTerminalStates is I1: every thunk that ends
// finished or errored has a cache entry, checked through a live Compute run
// rather than by poking the store directly.
func TestInvariantCacheEntryOnTerminalStates(t *testing.T) {
	sched := New(testContext(), Options{Log: zerolog.Nop()})

	boom := errors.New("boom")
	a := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return nil, boom
	}, nil, thunk.Options{})
	sched.Store().Submit(a)

	b := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return 1, nil
	}, []thunk.Input{thunk.Ref{ID: a.ID}}, thunk.Options{})

	if _, err := computeWithTimeout(t, sched, b); err == nil {
		t.Fatalf("expected Compute to report the propagated failure")
	}

	if !sched.Store().Errored(a.ID) {
		t.Fatalf("a should be errored")
	}
	if _, ok := sched.Store().CacheEntryFor(a.ID); !ok {
		t.Fatalf("I1 violated: errored thunk a has no cache entry")
	}
	if !sched.Store().Errored(b.ID) {
		t.Fatalf("b should be errored (propagated from a)")
	}
	if _, ok := sched.Store().CacheEntryFor(b.ID); !ok {
		t.Fatalf("I1 violated: errored thunk b has no cache entry")
	}
}

// TestInvariantFailurePropagationKeepsOrigin is I4: every transitive
// dependent of a failed thunk ends up errored, and the propagated exception
// keeps the original failure's origin (scenario 3 of spec.md §8).
func TestInvariantFailurePropagationKeepsOrigin(t *testing.T) {
	sched := New(testContext(), Options{Log: zerolog.Nop()})

	boom := errors.New("x")
	a := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return nil, boom
	}, nil, thunk.Options{})
	sched.Store().Submit(a)

	b := thunk.New(func(ctx context.Context, args []any) (any, error) {
		t.Fatalf("b should never execute once a has failed")
		return nil, nil
	}, []thunk.Input{thunk.Ref{ID: a.ID}}, thunk.Options{})
	sched.Store().Submit(b)

	c := thunk.New(func(ctx context.Context, args []any) (any, error) {
		t.Fatalf("c should never execute once b has failed")
		return nil, nil
	}, []thunk.Input{thunk.Ref{ID: b.ID}}, thunk.Options{})

	if _, err := computeWithTimeout(t, sched, c); err == nil {
		t.Fatalf("expected Compute to report the propagated failure")
	}

	entry, ok := sched.Store().CacheEntryFor(c.ID)
	if !ok || entry.Err == nil {
		t.Fatalf("c should carry a propagated ThunkFailedException")
	}
	if entry.Err.Origin != a.ID {
		t.Fatalf("propagated exception origin = %d, want %d (a)", entry.Err.Origin, a.ID)
	}
	if !sched.Store().Errored(a.ID) || !sched.Store().Errored(b.ID) || !sched.Store().Errored(c.ID) {
		t.Fatalf("expected a, b, c all errored")
	}
}

// TestInvariantHaltLatchStaysSet is I6: once the halt latch is set it is
// never cleared, observed after Compute has already returned.
func TestInvariantHaltLatchStaysSet(t *testing.T) {
	sched := New(testContext(), Options{Log: zerolog.Nop()})

	root := thunk.New(func(ctx context.Context, args []any) (any, error) {
		handle, ok := control.HandleFromContext(ctx)
		if !ok {
			return nil, errors.New("no control-plane handle bound to context")
		}
		_, err := handle.Do(ctx, control.Halt("invariant check"))
		return nil, err
	}, nil, thunk.Options{})

	_, err := computeWithTimeout(t, sched, root)
	var halted *failure.SchedulerHaltedException
	if !errors.As(err, &halted) {
		t.Fatalf("err = %v, want *failure.SchedulerHaltedException", err)
	}
	if !sched.Store().Halted() {
		t.Fatalf("I6 violated: halt latch not observed set after Compute returned")
	}
}

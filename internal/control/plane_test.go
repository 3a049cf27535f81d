package control

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thunkgraph/internal/future"
	"thunkgraph/internal/store"
	"thunkgraph/internal/thunk"
)

func TestGetDagIDsRoundTrip(t *testing.T) {
	s := store.New()
	root := thunk.New(nil, nil, thunk.Options{})
	s.Submit(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := Deps{Store: s}
	plane := New(ctx, deps, zerolog.Nop())
	h := plane.NewWorker("worker-0", root.ID)

	val, err := h.Call(ctx, GetDagIDs().Run, "get_dag_ids")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	ids, ok := val.(map[thunk.ID][]thunk.ID)
	if !ok {
		t.Fatalf("unexpected reply type %T", val)
	}
	if _, present := ids[root.ID]; !present {
		t.Fatalf("expected root id present in snapshot")
	}
}

func TestAddThunkDispatchesAndReturnsID(t *testing.T) {
	s := store.New()
	root := thunk.New(nil, nil, thunk.Options{})
	s.Submit(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatched := make(chan struct{}, 1)
	deps := Deps{Store: s, Dispatch: func() { dispatched <- struct{}{} }}
	plane := New(ctx, deps, zerolog.Nop())
	h := plane.NewWorker("worker-0", root.ID)

	cmd := AddThunk(nil, nil, thunk.Options{})
	val, err := h.Call(ctx, cmd.Run, cmd.Name)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := val.(thunk.ID); !ok {
		t.Fatalf("expected thunk.ID reply, got %T", val)
	}

	select {
	case <-dispatched:
	case <-time.After(time.Second):
		t.Fatalf("expected Dispatch to be invoked")
	}
}

func TestHaltSetsLatchAndPostsSynthetic(t *testing.T) {
	s := store.New()
	root := thunk.New(nil, nil, thunk.Options{})
	s.Submit(root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	posted := make(chan string, 1)
	deps := Deps{Store: s, PostHalt: func(reason string) { posted <- reason }}
	plane := New(ctx, deps, zerolog.Nop())
	h := plane.NewWorker("worker-0", root.ID)

	cmd := Halt("operator requested")
	if _, err := h.Call(ctx, cmd.Run, cmd.Name); err == nil {
		t.Fatalf("expected halt to surface an exit signal error to the caller")
	}
	if !s.Halted() {
		t.Fatalf("expected halt latch to be set")
	}
	select {
	case reason := <-posted:
		if reason != "operator requested" {
			t.Fatalf("reason = %q", reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected PostHalt to be invoked")
	}
}

func TestRegisterFutureFulfilsThroughControlPlane(t *testing.T) {
	s := store.New()
	a := thunk.New(nil, nil, thunk.Options{})
	s.Submit(a)
	other := thunk.New(nil, nil, thunk.Options{})
	s.Submit(other)

	popA, _ := s.PopReady(nil)
	s.MarkRunning(popA.ID)
	s.CompleteSuccess(popA.ID, store.CacheEntry{Value: "hi"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := Deps{Store: s}
	plane := New(ctx, deps, zerolog.Nop())
	h := plane.NewWorker("worker-0", other.ID)

	fut := future.New()
	cmd := RegisterFuture(a.ID, fut)
	if _, err := h.Call(ctx, cmd.Run, cmd.Name); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !fut.Done() {
		t.Fatalf("expected future to be fulfilled immediately")
	}
}

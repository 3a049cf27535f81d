package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thunkgraph/internal/processor"
	"thunkgraph/internal/runctx"
	"thunkgraph/internal/thunk"
)

func testContext() *runctx.Context {
	leaf := processor.NewThreadProcessor("t0", nil)
	return runctx.New(zerolog.Nop(), leaf)
}

func computeWithTimeout(t *testing.T, sched *Scheduler, root *thunk.Thunk) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sched.Compute(ctx, root)
}

func TestComputeSingleThunk(t *testing.T) {
	sched := New(testContext(), Options{Log: zerolog.Nop()})
	root := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return 42, nil
	}, nil, thunk.Options{})

	val, err := computeWithTimeout(t, sched, root)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if val != 42 {
		t.Fatalf("val = %v, want 42", val)
	}
}

func TestComputeChainResolvesRefArgs(t *testing.T) {
	sched := New(testContext(), Options{Log: zerolog.Nop()})

	a := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return 10, nil
	}, nil, thunk.Options{})
	sched.Store().Submit(a)

	b := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return args[0].(int) + 5, nil
	}, []thunk.Input{thunk.Ref{ID: a.ID}}, thunk.Options{})

	val, err := computeWithTimeout(t, sched, b)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if val != 15 {
		t.Fatalf("val = %v, want 15", val)
	}
}

func TestComputePropagatesFailure(t *testing.T) {
	sched := New(testContext(), Options{Log: zerolog.Nop()})

	boom := errors.New("boom")
	a := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return nil, boom
	}, nil, thunk.Options{})
	sched.Store().Submit(a)

	b := thunk.New(func(ctx context.Context, args []any) (any, error) {
		t.Fatalf("b should never execute once its input has failed")
		return nil, nil
	}, []thunk.Input{thunk.Ref{ID: a.ID}}, thunk.Options{})

	_, err := computeWithTimeout(t, sched, b)
	if err == nil {
		t.Fatalf("expected Compute to return the propagated failure")
	}
}

func TestComputeSelectionExhausted(t *testing.T) {
	// A context with no processors at all: every thunk fails selection.
	rctx := runctx.New(zerolog.Nop())
	sched := New(rctx, Options{Log: zerolog.Nop()})

	root := thunk.New(func(ctx context.Context, args []any) (any, error) {
		return 1, nil
	}, nil, thunk.Options{})

	_, err := computeWithTimeout(t, sched, root)
	if err == nil {
		t.Fatalf("expected selection-exhausted failure with no processors registered")
	}
}

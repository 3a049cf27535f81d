package control

import (
	"context"

	"thunkgraph/internal/future"
	"thunkgraph/internal/thunk"
)

// RegisterFuture builds the register_future command of spec.md §4.4: if
// target is already finished/errored the future is fulfilled immediately
// by the store; otherwise it's queued. The dominator guard lives in
// store.RegisterFuture itself.
func RegisterFuture(target thunk.ID, fut *future.Future) Command {
	return Command{
		Name: "register_future",
		Run: func(ctx context.Context, deps Deps, workerID string, requester thunk.ID) (any, error) {
			if err := deps.Store.RegisterFuture(requester, target, fut); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}

// AddThunk builds the add_thunk command: constructs a new Thunk from f and
// inputs (already resolved from ThunkID references to thunk.Ref values by
// the caller), submits it, and — since submission may have produced newly
// ready work — nudges the dispatch loop before returning the new id.
func AddThunk(f thunk.Func, inputs []thunk.Input, opts thunk.Options) Command {
	return Command{
		Name: "add_thunk",
		Run: func(ctx context.Context, deps Deps, workerID string, requester thunk.ID) (any, error) {
			t := thunk.New(f, inputs, opts)
			deps.Store.Submit(t)
			if deps.Dispatch != nil {
				deps.Dispatch()
			}
			return t.ID, nil
		},
	}
}

// GetDagIDs builds the get_dag_ids command: a snapshot of every known
// thunk id mapped to its direct dependents.
func GetDagIDs() Command {
	return Command{
		Name: "get_dag_ids",
		Run: func(ctx context.Context, deps Deps, workerID string, requester thunk.ID) (any, error) {
			return deps.Store.GetDagIDs(), nil
		},
	}
}

// Halt builds the halt command: sets the halt latch and posts the
// synthetic halted completion that unblocks the scheduler's main loop,
// then reports a quiet exitSignal so this worker's listener stops without
// logging an error.
func Halt(reason string) Command {
	return Command{
		Name: "halt",
		Run: func(ctx context.Context, deps Deps, workerID string, requester thunk.ID) (any, error) {
			deps.Store.Halt()
			if deps.PostHalt != nil {
				deps.PostHalt(reason)
			}
			return nil, exitSignal{reason: "control: halt requested: " + reason}
		},
	}
}

// Package scheduler implements the kernel of spec.md §4.2: the main loop
// (admit completions, dispatch, safepoint), processor selection and
// argument movement, and wiring of the control plane and lifecycle hooks
// around a single compute() run. It is the direct generalization of the
// teacher's dag.Executor.RunSerial loop to concurrent, processor-routed
// dispatch instead of single-threaded in-process execution.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"thunkgraph/internal/cache"
	"thunkgraph/internal/control"
	"thunkgraph/internal/failure"
	"thunkgraph/internal/processor"
	"thunkgraph/internal/runctx"
	"thunkgraph/internal/store"
	"thunkgraph/internal/thunk"
)

// completion is what a worker posts back on the scheduler's completion
// channel, spec.md §4.2 step 1's "(thunk_id, result_or_error)".
type completion struct {
	id     thunk.ID
	value  any
	chunk  *thunk.Chunk
	err    error
	halted bool
	reason string
}

// Options configures a Scheduler beyond the run-scoped Context/processor
// tree, which is supplied separately since it's mutable across the run
// (add/remove processors) while Options is fixed at construction.
type Options struct {
	Lifecycle  Lifecycle
	Log        zerolog.Logger
	Registerer prometheus.Registerer
}

// Scheduler drives one compute() run: the state store, the run context
// (processor set + round-robin queue), the dynamic control plane, and the
// completion channel the main loop blocks on.
type Scheduler struct {
	store   *store.Store
	ctx     *runctx.Context
	plane   *control.Plane
	life    safeLifecycle
	log     zerolog.Logger
	metrics *metrics
	memo    *cache.Cache

	completions chan completion
	wake        chan struct{}
}

// New constructs a Scheduler. rctx must already be seeded with the
// process/thread tree workers will be selected from.
func New(rctx *runctx.Context, opts Options) *Scheduler {
	log := opts.Log
	lifecycle := opts.Lifecycle

	s := &Scheduler{
		store:       store.New(),
		ctx:         rctx,
		log:         log,
		metrics:     newMetrics(opts.Registerer),
		memo:        cache.New(),
		completions: make(chan completion, 64),
		wake:        make(chan struct{}, 1),
	}
	s.life = newSafeLifecycle(lifecycle, func(hook string, r any) {
		s.log.Warn().Str("hook", hook).Interface("recover", r).Msg("lifecycle hook panicked")
	})
	return s
}

// Store exposes the underlying state store, e.g. so cmd/thunkgraph can
// inspect results after Compute returns, or so the control plane's Deps
// can be built against it.
func (s *Scheduler) Store() *store.Store { return s.store }

// NewWorkerHandle registers a fresh control-plane channel pair for a
// dynamic thunk about to execute, bound to id. Call this right before
// invoking the thunk's Func so the handle can be bound into its ctx via
// control.WithHandle.
func (s *Scheduler) NewWorkerHandle(workerID string, id thunk.ID) *control.Handle {
	return s.plane.NewWorker(workerID, id)
}

// planeDeps adapts *store.Store to control.StateOps and wires Dispatch/
// PostHalt back into this scheduler.
func (s *Scheduler) planeDeps() control.Deps {
	return control.Deps{
		Store: planeStore{s.store},
		Dispatch: func() {
			// add_thunk runs on a control-plane listener goroutine, not
			// the main loop goroutine; nudge the loop in case it's
			// blocked waiting for exactly this newly-ready work.
			select {
			case s.wake <- struct{}{}:
			default:
			}
		},
		PostHalt: func(reason string) {
			s.completions <- completion{halted: true, reason: reason}
		},
	}
}

// planeStore narrows *store.Store to control.StateOps.
type planeStore struct{ *store.Store }

// Compute runs root (and everything it transitively depends on) to
// completion, returning its result or the (possibly propagated) failure.
// Only root itself is submitted here: every thunk root references must
// already have been submitted to Store, bottom-up, because a reference to
// a thunk the store has never seen stays unresolved.
// Per-call processor/selection overrides belong on root.Options; Options
// passed to New governs the run's ambient concerns (logging, metrics,
// lifecycle hooks) instead.
func (s *Scheduler) Compute(ctx context.Context, root *thunk.Thunk) (any, error) {
	s.plane = control.New(ctx, s.planeDeps(), s.log)

	s.life.BeforeRun(ctx)
	defer s.life.AfterRun(ctx)

	s.store.Submit(root)

	if err := s.mainLoop(ctx, root.ID); err != nil {
		return nil, err
	}

	entry, ok := s.store.CacheEntryFor(root.ID)
	if !ok {
		return nil, fmt.Errorf("scheduler: run ended without a result for root %d", root.ID)
	}
	if entry.Err != nil {
		return nil, entry.Err
	}
	if entry.Chunk != nil {
		return *entry.Chunk, nil
	}
	return entry.Value, nil
}

// mainLoop is spec.md §4.2: admit completions, dispatch, safepoint, repeat
// until ready/running/control-queue are all empty.
func (s *Scheduler) mainLoop(ctx context.Context, root thunk.ID) error {
	for {
		if err := s.admitCompletions(ctx); err != nil {
			return err
		}
		if s.store.Halted() {
			return &failure.SchedulerHaltedException{Reason: "halt latch observed at safepoint"}
		}

		s.dispatch(ctx)

		if s.store.Halted() {
			return &failure.SchedulerHaltedException{Reason: "halt latch observed at safepoint"}
		}

		if s.store.ReadyLen() == 0 && s.store.RunningLen() == 0 {
			if s.store.Finished(root) || s.store.Errored(root) {
				return nil
			}
			if s.store.AllTerminal() {
				// Nothing left to run and root never resolved: treat as
				// an internal scheduling defect rather than hang.
				return fmt.Errorf("scheduler: deadlock, no ready/running work and root %d unresolved", root)
			}
			// Nothing dispatchable right now but the graph isn't wedged
			// (e.g. waiting on a not-yet-submitted dynamic input); block
			// for the next completion or a context cancellation.
			select {
			case c := <-s.completions:
				s.handleCompletion(c)
			case <-s.wake:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// admitCompletions drains the completion channel non-blocking first; if
// that leaves nothing ready to dispatch while work is still running, it
// blocks for one more completion, or for a wake from add_thunk, so the
// loop doesn't spin (spec.md §4.2 step 1).
func (s *Scheduler) admitCompletions(ctx context.Context) error {
	for {
		select {
		case c := <-s.completions:
			s.handleCompletion(c)
			continue
		default:
		}
		break
	}

	if s.store.RunningLen() > 0 && s.store.ReadyLen() == 0 {
		select {
		case c := <-s.completions:
			s.handleCompletion(c)
		case <-s.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Scheduler) handleCompletion(c completion) {
	if c.halted {
		s.store.Halt()
		s.store.AbandonAllFutures(&failure.SchedulerHaltedException{Reason: c.reason})
		return
	}
	if c.err != nil {
		s.metrics.errored.Inc()
		s.store.CompleteError(c.id, c.err)
		return
	}
	s.metrics.finished.Inc()
	entry := store.CacheEntry{Value: c.value, Chunk: c.chunk}
	s.store.CompleteSuccess(c.id, entry)

	if t, ok := s.store.Lookup(c.id); ok && t.Options.Cache {
		s.memo.Store(t.Options.CacheKey, cache.Entry{Value: entry.Value, Chunk: entry.Chunk})
	}
}

// dispatch implements spec.md §4.2 step 2: pop ready work, select a
// processor, move inputs, launch execution.
func (s *Scheduler) dispatch(ctx context.Context) {
	for {
		t, ok := s.store.PopReady(s.matchesPinned)
		if !ok {
			return
		}
		s.dispatchOne(ctx, t)
	}
}

func (s *Scheduler) matchesPinned(single string) bool {
	for _, p := range s.ctx.Procs() {
		for _, leaf := range processor.Flatten(p) {
			if string(leaf.ID()) == single {
				return true
			}
		}
	}
	return false
}

func (s *Scheduler) dispatchOne(ctx context.Context, t *thunk.Thunk) {
	if t.Options.Cache && s.memo.Plan(t.Options.CacheKey) == cache.DecisionReuseCache {
		entry, _ := s.memo.Lookup(t.Options.CacheKey)
		s.store.MarkRunning(t.ID)
		if entry.Err != nil {
			s.completions <- completion{id: t.ID, err: entry.Err}
			return
		}
		c, _ := entry.Chunk.(*thunk.Chunk)
		s.completions <- completion{id: t.ID, value: entry.Value, chunk: c}
		return
	}

	args, err := s.resolveArgs(t)
	if err != nil {
		s.store.MarkRunning(t.ID)
		s.completions <- completion{id: t.ID, err: err}
		return
	}

	selected, surveyed, err := processor.Select(s.ctx.RoundRobin(), t, t.Func, args)
	if err != nil {
		s.store.MarkRunning(t.ID)
		s.completions <- completion{id: t.ID, err: &failure.SelectionExhaustedError{Thunk: t.ID, Surveyed: surveyed}}
		return
	}

	moved, err := s.moveArgs(ctx, args, selected)
	if err != nil {
		s.store.MarkRunning(t.ID)
		s.completions <- completion{id: t.ID, err: err}
		return
	}

	s.store.MarkRunning(t.ID)
	s.metrics.dispatched.Inc()
	s.metrics.readyDepth.Set(float64(s.store.ReadyLen()))
	s.metrics.runningDepth.Set(float64(s.store.RunningLen()))

	workerID := fmt.Sprintf("worker-%d", t.ID)
	handle := s.NewWorkerHandle(workerID, t.ID)

	s.life.BeforeNode(ctx, t.ID)
	go s.execute(ctx, t, selected, moved, handle)
}

// moveArgs relocates any Chunk-valued argument from its producing
// processor to the one selected for this dispatch, via move(from_proc,
// to_proc, x) (spec.md §4.2 step 2). Plain in-memory values need no move:
// they're already addressable from any goroutine in this process.
func (s *Scheduler) moveArgs(ctx context.Context, args []any, to processor.Processor) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		c, isChunk := a.(thunk.Chunk)
		if !isChunk {
			out[i] = a
			continue
		}
		from, ok := s.ctx.FindProcessor(c.ProcessorID)
		if !ok {
			return nil, fmt.Errorf("scheduler: move: unknown source processor %q for chunk %s", c.ProcessorID, c.UUID)
		}
		moved, err := from.Move(ctx, to, c)
		if err != nil {
			return nil, fmt.Errorf("scheduler: move chunk %s from %q to %q: %w", c.UUID, from.ID(), to.ID(), err)
		}
		out[i] = moved
	}
	return out, nil
}

// resolveArgs replaces each of t's inputs with its materialized value
// (Literal) or cached result (Ref) — the "args has already been resolved"
// contract of thunk.Func.
func (s *Scheduler) resolveArgs(t *thunk.Thunk) ([]any, error) {
	args := make([]any, len(t.Inputs))
	for i, in := range t.Inputs {
		switch v := in.(type) {
		case thunk.Literal:
			args[i] = v.Value
		case thunk.Ref:
			entry, ok := s.store.CacheEntryFor(v.ID)
			if !ok || entry.Err != nil {
				if ok && entry.Err != nil {
					return nil, entry.Err
				}
				return nil, fmt.Errorf("scheduler: input %d not resolved for thunk %d", v.ID, t.ID)
			}
			if entry.Chunk != nil {
				args[i] = *entry.Chunk
			} else {
				args[i] = entry.Value
			}
		}
	}
	return args, nil
}

type acquirer interface {
	Acquire(ctx context.Context) error
	Release()
}

func findAcquirer(p processor.Processor) (acquirer, bool) {
	for p != nil {
		if a, ok := p.(acquirer); ok {
			return a, true
		}
		p = p.Parent()
	}
	return nil, false
}

// execute runs t on the selected processor, respecting any ancestor's
// capacity semaphore (e.g. ProcessProcessor), and posts the outcome on the
// completion channel. handle is this dispatch's control-plane endpoint,
// bound into ctx so t.Func can retrieve it via control.HandleFromContext
// and call back into the scheduler (register_future, add_thunk, halt,
// get_dag_ids) while it runs; it is closed once execution returns.
func (s *Scheduler) execute(ctx context.Context, t *thunk.Thunk, selected processor.Processor, args []any, handle *control.Handle) {
	defer handle.Close()
	defer func() {
		if r := recover(); r != nil {
			s.completions <- completion{id: t.ID, err: fmt.Errorf("scheduler: thunk %d panicked: %v", t.ID, r)}
		}
	}()
	ctx = control.WithHandle(ctx, handle)

	if a, ok := findAcquirer(selected); ok {
		if err := a.Acquire(ctx); err != nil {
			s.completions <- completion{id: t.ID, err: err}
			return
		}
		defer a.Release()
	}

	start := time.Now()
	val, err := selected.Execute(ctx, t.Func, args)
	s.metrics.execSeconds.Observe(time.Since(start).Seconds())
	s.life.AfterNode(ctx, t.ID)

	if err != nil {
		s.completions <- completion{id: t.ID, err: err}
		return
	}

	if c, isChunk := val.(thunk.Chunk); isChunk {
		c.ProcessorID = selected.ID()
		s.completions <- completion{id: t.ID, chunk: &c}
		return
	}
	s.completions <- completion{id: t.ID, value: val}
}

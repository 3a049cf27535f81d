// Package control implements the dynamic control plane of spec.md §4.4: a
// pair of channels per worker that lets an executing thunk call back into
// the scheduler to register a future, add a thunk, inspect the DAG, or
// halt the run. The per-worker listener loop is a direct generalization of
// the teacher's pluginengine.HookEngine dispatch — panic-recovering,
// logged, one task per registered participant.
package control

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"thunkgraph/internal/future"
	"thunkgraph/internal/thunk"
)

// StateOps is the subset of *store.Store the control plane's built-in
// commands touch. Declared here (rather than importing internal/store
// directly) so this package stays the narrow seam spec.md describes:
// "a worker/scheduler control channel protocol", not a re-export of the
// whole state store.
type StateOps interface {
	Submit(t *thunk.Thunk) bool
	RegisterFuture(requester, target thunk.ID, f *future.Future) error
	GetDagIDs() map[thunk.ID][]thunk.ID
	Halt()
}

// Deps bundles everything a command Handler may need beyond the state
// store itself: a way to nudge the scheduler's dispatch loop after
// mutating the ready queue, and a way to post the synthetic halted
// completion the halt command requires.
type Deps struct {
	Store    StateOps
	Dispatch func()
	PostHalt func(reason string)
}

// Handler is the `f` of spec.md's "(thunk_id, f, args)" triple. Command
// arguments are captured by closure at construction time (idiomatic Go;
// there is no reason to re-box them into an `any` parameter) rather than
// passed positionally.
type Handler func(ctx context.Context, deps Deps, workerID string, id thunk.ID) (any, error)

// Command is a single control-channel request.
type Command struct {
	ThunkID thunk.ID
	Name    string
	Run     Handler
}

// Reply is the scheduler's answer, mirroring spec.md's (is_error, payload)
// pair.
type Reply struct {
	Value   any
	Err     error
	IsError bool
}

// exitSignal marks conditions the listener loop treats as a quiet exit
// rather than a logged error: halt, or the worker's own channel closing.
type exitSignal struct{ reason string }

func (e exitSignal) Error() string { return e.reason }

// Handle is the worker-side endpoint: the thunk.ID plus the two channel
// directions spec.md's "handle given to each executing thunk" describes.
// A running thunk's own Func retrieves its Handle via HandleFromContext.
type Handle struct {
	thunkID  thunk.ID
	workerID string
	inbound  chan<- Command
	outbound <-chan Reply
}

// ThunkID returns the id of the thunk this handle was issued to.
func (h *Handle) ThunkID() thunk.ID { return h.thunkID }

// Call sends cmd (with its ThunkID/workerID filled in by the handle) and
// blocks for the reply, raising Err on the caller's stack if IsError, per
// spec.md §4.4 step 4.
func (h *Handle) Call(ctx context.Context, run Handler, name string) (any, error) {
	cmd := Command{ThunkID: h.thunkID, Name: name, Run: run}
	select {
	case h.inbound <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-h.outbound:
		if reply.IsError {
			return nil, reply.Err
		}
		return reply.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do sends a ready-built Command (RegisterFuture, AddThunk, GetDagIDs,
// Halt, ...) and blocks for the reply — the convenience form of Call for
// the builtin commands in commands.go.
func (h *Handle) Do(ctx context.Context, cmd Command) (any, error) {
	return h.Call(ctx, cmd.Run, cmd.Name)
}

// Close ends this handle's listener goroutine by closing its inbound
// channel. The scheduler calls this once the thunk the handle was issued
// to has finished executing; any control command already in flight still
// gets its reply first.
func (h *Handle) Close() {
	close(h.inbound)
}

// handleContextKey is the unexported context.Context key a Handle is
// stored under, so a thunk's Func can retrieve the handle issued to it
// without it being threaded through thunk.Func's argument list.
type handleContextKey struct{}

// WithHandle returns a copy of ctx carrying h, the handle a thunk's own
// Func can later retrieve via HandleFromContext to call back into the
// scheduler (register a future, add a thunk, inspect the DAG, or halt the
// run) from inside its own execution — spec.md §6's "handle given to each
// executing thunk".
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleContextKey{}, h)
}

// HandleFromContext returns the Handle bound to ctx by WithHandle, if any.
// A thunk.Func invoked outside the scheduler's dispatch path (e.g. in a
// unit test that calls the func directly) gets ok == false.
func HandleFromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(handleContextKey{}).(*Handle)
	return h, ok
}

// Plane owns every worker's channel pair and the listener goroutines that
// service them, run under an errgroup so the scheduler can wait for a
// clean shutdown of the whole control plane (spec.md §4.4's "listener
// spawns one cooperative task per worker channel pair").
type Plane struct {
	deps Deps
	log  zerolog.Logger
	grp  *errgroup.Group
	ctx  context.Context
}

// New starts a Plane bound to ctx: every listener goroutine it spawns is
// tracked by an internal errgroup.Group and stops when ctx is cancelled.
func New(ctx context.Context, deps Deps, log zerolog.Logger) *Plane {
	grp, gctx := errgroup.WithContext(ctx)
	return &Plane{deps: deps, log: log, grp: grp, ctx: gctx}
}

// Wait blocks until every listener goroutine has exited. Listener
// goroutines always finish with a nil error (handler failures go back to
// the worker as replies), so Wait returns nil.
func (p *Plane) Wait() error {
	return p.grp.Wait()
}

// NewWorker registers a channel pair for workerID bound to thunkID and
// starts its listener goroutine. The returned Handle is what gets threaded
// into the worker's execution context.
func (p *Plane) NewWorker(workerID string, thunkID thunk.ID) *Handle {
	inbound := make(chan Command)
	outbound := make(chan Reply)

	p.grp.Go(func() error {
		p.listen(workerID, inbound, outbound)
		return nil
	})

	return &Handle{thunkID: thunkID, workerID: workerID, inbound: inbound, outbound: outbound}
}

// listen is the per-worker cooperative task: it reads inbound commands in
// FIFO order, invokes each under the state lock (delegated to the handler,
// since *store.Store is itself single-mutex-guarded), recovers handler
// panics, and writes replies in the same order, satisfying spec.md §5's
// "for a single worker, commands... are processed in FIFO order, and
// replies return in that same order".
func (p *Plane) listen(workerID string, inbound <-chan Command, outbound chan<- Reply) {
	for {
		select {
		case cmd, ok := <-inbound:
			if !ok {
				return
			}
			reply := p.invoke(workerID, cmd)
			select {
			case outbound <- reply:
			case <-p.ctx.Done():
				return
			}
			if reply.IsError && isExit(reply.Err) {
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Plane) invoke(workerID string, cmd Command) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("control: command %s panicked: %v", cmd.Name, r)
			p.log.Error().Str("command", cmd.Name).Interface("recover", r).Msg("control plane handler panic")
			reply = Reply{Err: pkgerrors.WithStack(err), IsError: true}
		}
	}()

	val, err := cmd.Run(p.ctx, p.deps, workerID, cmd.ThunkID)
	if err != nil {
		if isExit(err) {
			return Reply{Err: err, IsError: true}
		}
		p.log.Error().Err(err).Str("command", cmd.Name).Msg("control plane handler error")
		return Reply{Err: pkgerrors.WithStack(err), IsError: true}
	}
	return Reply{Value: val}
}

// isExit reports whether err is one of the quiet-exit conditions spec.md
// §4.4 calls out (halt/exit/invalid-state): these stop the listener loop
// without being logged as handler errors.
func isExit(err error) bool {
	_, ok := err.(exitSignal)
	return ok
}

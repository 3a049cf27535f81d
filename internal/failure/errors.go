// Package failure implements the scheduler's error taxonomy (spec.md §7):
// thunk failures, processor-selection exhaustion, and the halt signal, plus
// re-addressing a failure to a dependent as it propagates (the transitive
// walk itself lives in internal/store).
package failure

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"thunkgraph/internal/thunk"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	// ErrThunkFailed marks any error produced by a thunk's own function.
	ErrThunkFailed = errors.New("thunk failed")

	// ErrSchedulerHalted marks the scheduler-wide halt condition.
	ErrSchedulerHalted = errors.New("scheduler halted")

	// ErrSelectionExhausted marks a failed processor-selection pass.
	ErrSelectionExhausted = errors.New("processor selection exhausted")
)

// ThunkFailedException wraps the originating error and identifies the thunk
// whose execution raised it. When propagated to a dependent (spec.md §4.5),
// Thunk is the dependent's id while Origin/OriginErr stay fixed at the first
// failure.
type ThunkFailedException struct {
	Thunk     thunk.ID
	Origin    thunk.ID
	OriginErr error

	// stack captures a backtrace at the point the origin error was
	// recorded. Control-command handler failures do not pass through
	// here; internal/control attaches their backtrace itself.
	stack error
}

// NewThunkFailedException wraps err as the origin failure for thunk t.
func NewThunkFailedException(t thunk.ID, err error) *ThunkFailedException {
	return &ThunkFailedException{
		Thunk:     t,
		Origin:    t,
		OriginErr: err,
		stack:     pkgerrors.WithStack(err),
	}
}

// Propagated returns a copy of e re-addressed to a downstream dependent,
// keeping Origin/OriginErr/stack intact.
func (e *ThunkFailedException) Propagated(dependent thunk.ID) *ThunkFailedException {
	cp := *e
	cp.Thunk = dependent
	return &cp
}

func (e *ThunkFailedException) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: thunk %d failed (origin %d): %v", ErrThunkFailed, e.Thunk, e.Origin, e.OriginErr)
}

func (e *ThunkFailedException) Unwrap() error { return ErrThunkFailed }

// StackTrace exposes the captured backtrace, e.g. for CLI diagnostics.
func (e *ThunkFailedException) StackTrace() pkgerrors.StackTrace {
	type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
	if st, ok := e.stack.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// SchedulerHaltedException is surfaced to compute() callers and to any
// in-flight futures when the halt latch is set (spec.md §7.3).
type SchedulerHaltedException struct {
	Reason string
}

func (e *SchedulerHaltedException) Error() string {
	if e == nil || e.Reason == "" {
		return ErrSchedulerHalted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrSchedulerHalted, e.Reason)
}

func (e *SchedulerHaltedException) Unwrap() error { return ErrSchedulerHalted }

// SelectionExhaustedError reports that no compatible processor could be
// found; Surveyed lists the kinds that were considered and rejected.
type SelectionExhaustedError struct {
	Thunk    thunk.ID
	Surveyed []string
}

func (e *SelectionExhaustedError) Error() string {
	return fmt.Sprintf("%s: thunk %d: surveyed %v", ErrSelectionExhausted, e.Thunk, e.Surveyed)
}

func (e *SelectionExhaustedError) Unwrap() error { return ErrSelectionExhausted }

package processor

import (
	"context"

	"thunkgraph/internal/thunk"
)

// ThreadProcessor is the minimal leaf processor variant: it runs a thunk's
// function in the calling goroutine (the owning ProcessProcessor is what
// actually bounds concurrency via its semaphore) and moves chunks by
// reference — same-process threads share memory, so Move is a no-op
// identity copy of the metadata.
type ThreadProcessor struct {
	Base
}

// NewThreadProcessor constructs a thread processor with the given id,
// parented under parent.
func NewThreadProcessor(id ID, parent Processor) *ThreadProcessor {
	return &ThreadProcessor{Base: Base{IDValue: id, KindValue: "thread", ParentValue: parent}}
}

func (t *ThreadProcessor) IscompatibleFunc(f thunk.Func) bool { return f != nil }
func (t *ThreadProcessor) IscompatibleArg(any) bool           { return true }
func (t *ThreadProcessor) DefaultEnabled() bool               { return true }

func (t *ThreadProcessor) Execute(ctx context.Context, f thunk.Func, args []any) (any, error) {
	return f(ctx, args)
}

// Move between two threads of the same process is a metadata-only copy: the
// underlying value is already addressable from any goroutine in this
// process.
func (t *ThreadProcessor) Move(ctx context.Context, to Processor, c thunk.Chunk) (thunk.Chunk, error) {
	cp := c
	cp.ProcessorID = to.ID()
	return cp, nil
}

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sync/semaphore"

	"thunkgraph/internal/thunk"
	"thunkgraph/internal/workspace"
)

// ProcessProcessor is the root processor kind: it enumerates child thread
// processors and bounds how many of them may execute concurrently via a
// weighted semaphore, modeling one OS process worth of capacity.
type ProcessProcessor struct {
	Base
	ws       workspace.Workspace
	children []Processor
	sem      *semaphore.Weighted
}

// NewProcessProcessor creates a process processor with numThreads leaf
// thread processors and a semaphore bounding concurrent execution to the
// same count.
func NewProcessProcessor(id ID, numThreads int, ws workspace.Workspace) *ProcessProcessor {
	p := &ProcessProcessor{
		Base: Base{IDValue: id, KindValue: "process"},
		ws:   ws,
		sem:  semaphore.NewWeighted(int64(numThreads)),
	}
	children := make([]Processor, 0, numThreads)
	for i := 0; i < numThreads; i++ {
		tid := ID(string(id) + "/thread" + strconv.Itoa(i))
		children = append(children, NewThreadProcessor(tid, p))
	}
	p.children = children
	return p
}

func (p *ProcessProcessor) Children() []Processor { return p.children }

// Acquire blocks until a thread slot is free; used by the scheduler to
// avoid oversubscribing this process beyond its declared thread count
// independent of how many thunks got dispatched to its leaves.
func (p *ProcessProcessor) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release frees a previously acquired thread slot.
func (p *ProcessProcessor) Release() {
	p.sem.Release(1)
}

func (p *ProcessProcessor) IscompatibleFunc(f thunk.Func) bool { return f != nil }
func (p *ProcessProcessor) IscompatibleArg(any) bool           { return true }
func (p *ProcessProcessor) DefaultEnabled() bool               { return true }

func (p *ProcessProcessor) Execute(ctx context.Context, f thunk.Func, args []any) (any, error) {
	return f(ctx, args)
}

// Move between two process processors stages the value through the run
// workspace: encode it to a file via encoding/json, return a Chunk whose
// Handle is the staged path. A Move to a thread processor leaves the chunk
// in place (same process, same filesystem) except for the ProcessorID tag.
func (p *ProcessProcessor) Move(ctx context.Context, to Processor, c thunk.Chunk) (thunk.Chunk, error) {
	if to.Kind() == "thread" {
		cp := c
		cp.ProcessorID = to.ID()
		return cp, nil
	}

	path := p.ws.ChunkPath(c.UUID.String())
	f, err := os.Create(path)
	if err != nil {
		return thunk.Chunk{}, fmt.Errorf("processor: stage chunk: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Handle); err != nil {
		return thunk.Chunk{}, fmt.Errorf("processor: encode chunk: %w", err)
	}

	cp := c
	cp.ProcessorID = to.ID()
	cp.Handle = path
	return cp, nil
}

package thunk

import "github.com/google/uuid"

// ProcessorID identifies the processor (of whatever kind) a Chunk currently
// lives on. It is opaque to this package.
type ProcessorID string

// Chunk is an opaque reference to a materialized result living on some
// processor. It carries enough metadata for internal/processor.Move to find
// and relocate the underlying data; it never carries the data itself inline
// (that's what an inline cache value is for).
type Chunk struct {
	// UUID is a cluster-wide stable identifier distinct from the
	// process-local monotonic ThunkID, so chunks can be referenced from
	// control-plane messages sent to other workers.
	UUID uuid.UUID

	ProcessorID ProcessorID
	SizeHint    int64

	// handle is the processor-specific payload (e.g. a file path, an
	// in-memory pointer wrapper). Only the owning processor's vtable
	// interprets it.
	Handle any
}

// NewChunk creates a Chunk with a fresh UUID bound to the given processor.
func NewChunk(proc ProcessorID, handle any, sizeHint int64) Chunk {
	return Chunk{UUID: uuid.New(), ProcessorID: proc, SizeHint: sizeHint, Handle: handle}
}

// Package cliapp implements thunkgraph's cobra command bodies: compute (run
// a submitted graph document to completion), processors (list discovered
// processor manifests and registered builtin functions), and serve-metrics
// (serve a prometheus registry over HTTP; the serve-metrics command runs no
// scheduler, so the registry it serves holds no scheduler collectors).
// Grounded on the teacher's internal/cli command bodies, generalized from
// build-graph execution to thunk-graph computation.
package cliapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"thunkgraph/internal/builtin"
	"thunkgraph/internal/config"
	"thunkgraph/internal/graphdoc"
	"thunkgraph/internal/processor"
	"thunkgraph/internal/runctx"
	"thunkgraph/internal/scheduler"
	"thunkgraph/internal/thunk"
	"thunkgraph/internal/workspace"
)

// ComputeOptions configures a single `thunkgraph compute` invocation.
type ComputeOptions struct {
	Cfg        config.Config
	Log        zerolog.Logger
	Registerer prometheus.Registerer
}

// ComputeResult reports the outcome for every root node in the submitted
// document, keyed by node id.
type ComputeResult struct {
	Results map[string]any    `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Compute parses, validates, and compiles the graph document read from r,
// then runs every root node (a node nothing else depends on) to completion
// against a freshly built single-process processor tree, one Scheduler run
// per root — each root's transitive dependencies are shared via the
// document but resolved independently per spec.md's single-owner cache
// semantics (a thunk belongs to exactly one run).
func Compute(ctx context.Context, r io.Reader, opts ComputeOptions) (ComputeResult, error) {
	doc, err := graphdoc.Parse(r)
	if err != nil {
		return ComputeResult{}, fmt.Errorf("cliapp: parse graph document: %w", err)
	}

	reg := builtin.NewRegistry()
	if err := builtin.RegisterStandard(reg); err != nil {
		return ComputeResult{}, fmt.Errorf("cliapp: register builtins: %w", err)
	}

	compiled, err := graphdoc.Compile(doc, reg)
	if err != nil {
		return ComputeResult{}, fmt.Errorf("cliapp: compile graph document: %w", err)
	}
	if len(compiled.Roots) == 0 {
		return ComputeResult{}, fmt.Errorf("cliapp: graph document has no root nodes to compute")
	}

	byID := make(map[thunk.ID]*thunk.Thunk, len(compiled.Thunks))
	for _, t := range compiled.Thunks {
		byID[t.ID] = t
	}

	result := ComputeResult{Results: make(map[string]any), Errors: make(map[string]string)}
	for _, rootID := range compiled.Roots {
		root := compiled.Thunks[rootID]

		ws, err := workspace.New(os.TempDir(), fmt.Sprintf("thunkgraph-%s", rootID))
		if err != nil {
			return ComputeResult{}, fmt.Errorf("cliapp: build workspace for root %q: %w", rootID, err)
		}

		procRoot := processor.NewProcessProcessor(processor.ID("local"), opts.Cfg.Concurrency, ws)
		rctx := runctx.New(opts.Log, procRoot)

		reg := opts.Registerer
		if reg != nil {
			reg = prometheus.WrapRegistererWith(prometheus.Labels{"root": rootID}, reg)
		}
		sched := scheduler.New(rctx, scheduler.Options{
			Log:        opts.Log,
			Registerer: reg,
		})

		var submitDeps func(t *thunk.Thunk)
		submitDeps = func(t *thunk.Thunk) {
			for _, id := range t.Refs() {
				dep := byID[id]
				submitDeps(dep)
				sched.Store().Submit(dep)
			}
		}
		submitDeps(root)

		val, err := sched.Compute(ctx, root)
		ws.Close()
		if err != nil {
			result.Errors[rootID] = err.Error()
			continue
		}
		result.Results[rootID] = val
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result, nil
}

// WriteJSON writes res as indented JSON to w.
func WriteJSON(w io.Writer, res ComputeResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

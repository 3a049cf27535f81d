// Package builtin is the named-function registry CLI-submitted graph
// documents resolve their node "type" field against, generalizing the
// teacher's plugin-registration pattern (internal/pluginengine.Registry)
// from runtime plugins to plain named Go functions.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateName is returned by Register for an already-registered name.
var ErrDuplicateName = errors.New("builtin: duplicate function name")

// ErrUnknownName names the condition of no function being registered under
// a requested name. No function in this package returns it: Lookup reports
// a miss through its boolean result.
var ErrUnknownName = errors.New("builtin: unknown function name")

// Func is a named graph-document function: its arguments arrive as a map
// keyed by the node's Inputs keys, already resolved (literals materialized,
// "@id" references replaced by the referenced node's result).
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry is a lock-guarded name -> Func map, duplicate-rejecting like the
// processor and pluginengine registries it's grounded on.
type Registry struct {
	mu   sync.Mutex
	byID map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Func)}
}

// Register adds fn under name. Duplicate names are rejected.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("builtin: empty function name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.byID[name] = fn
	return nil
}

// Lookup returns the function registered under name, if any.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.byID[name]
	return fn, ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byID))
	for name := range r.byID {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

package graphdoc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"thunkgraph/internal/builtin"
	"thunkgraph/internal/thunk"
)

// refPrefix marks an Inputs value as a reference to another node's result
// rather than a literal, e.g. `"left": "@addend"`.
const refPrefix = "@"

func parseRef(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, refPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, refPrefix), true
}

// Compiled is the result of compiling a Document: every node's id mapped
// to its constructed Thunk, plus the subset with no outgoing edge (nothing
// else depends on them) as candidate compute() roots.
type Compiled struct {
	Thunks map[string]*thunk.Thunk
	Roots  []string
}

// Compile validates doc's graph, then constructs a thunk.Thunk per node in
// dependency order, resolving "@id" inputs to thunk.Ref values against
// already-built thunks and everything else as a thunk.Literal. Node.Type
// is resolved against reg; an unregistered type is a SemanticError.
func Compile(doc *Document, reg *builtin.Registry) (*Compiled, error) {
	g := doc.Graph
	if err := Validate(&g); err != nil {
		return nil, err
	}
	if err := validateRefsMatchEdges(&g); err != nil {
		return nil, err
	}

	order, err := topoOrder(&g)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}

	built := make(map[string]*thunk.Thunk, len(g.Nodes))
	for _, id := range order {
		n := byID[id]
		fn, ok := reg.Lookup(n.Type)
		if !ok {
			return nil, &SemanticError{Msg: fmt.Sprintf("node %q: unregistered type %q", n.ID, n.Type)}
		}

		keys := make([]string, 0, len(n.Inputs))
		for k := range n.Inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		inputs := make([]thunk.Input, len(keys))
		for i, k := range keys {
			if ref, isRef := parseRef(n.Inputs[k]); isRef {
				dep, ok := built[ref]
				if !ok {
					return nil, &StructuralError{Kind: "dangling_edge", Msg: fmt.Sprintf("node %q input %q references unbuilt node %q", n.ID, k, ref)}
				}
				inputs[i] = thunk.Ref{ID: dep.ID}
				continue
			}
			inputs[i] = thunk.Literal{Value: n.Inputs[k]}
		}

		wrapped := wrap(fn, keys)
		t := thunk.New(wrapped, inputs, thunk.Options{})
		t.Label = n.ID
		built[n.ID] = t
	}

	roots := rootIDs(&g)
	return &Compiled{Thunks: built, Roots: roots}, nil
}

// wrap adapts a builtin.Func (named-argument map) to thunk.Func (resolved
// positional slice), re-pairing each resolved arg with the key it came
// from at the position fixed when the thunk was built.
func wrap(fn builtin.Func, keys []string) thunk.Func {
	return func(ctx context.Context, args []any) (any, error) {
		named := make(map[string]any, len(keys))
		for i, k := range keys {
			named[k] = args[i]
		}
		return fn(ctx, named)
	}
}

// topoOrder returns node ids in producer-before-consumer order (Kahn's
// algorithm), breaking ties lexicographically for determinism — the graph
// was already confirmed acyclic by Validate.
func topoOrder(g *Graph) ([]string, error) {
	indeg := make(map[string]int, len(g.Nodes))
	outgoing := make(map[string][]string)
	for _, n := range g.Nodes {
		indeg[n.ID] = 0
	}
	for _, e := range g.Edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
		indeg[e.To]++
	}
	for k := range outgoing {
		sort.Strings(outgoing[k])
	}

	var ready []string
	for id, d := range indeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var newlyReady []string
		for _, to := range outgoing[next] {
			indeg[to]--
			if indeg[to] == 0 {
				newlyReady = append(newlyReady, to)
			}
		}
		sort.Strings(newlyReady)
		ready = mergeSorted(ready, newlyReady)
	}

	if len(order) != len(g.Nodes) {
		return nil, &StructuralError{Kind: "cycle", Msg: "topological sort did not cover every node"}
	}
	return order, nil
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// rootIDs returns every node id with no outgoing edge: nothing else in the
// document depends on it, so it's a natural candidate to pass to
// scheduler.Compute.
func rootIDs(g *Graph) []string {
	hasOutgoing := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		hasOutgoing[e.From] = true
	}
	var roots []string
	for _, n := range g.Nodes {
		if !hasOutgoing[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	sort.Strings(roots)
	return roots
}

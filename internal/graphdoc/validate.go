package graphdoc

import (
	"fmt"
	"sort"
)

// Validate checks for duplicate node ids first, then each edge (in sorted
// order) for self-reference and then for unknown endpoints, and finally
// for cycles, mirroring the teacher's internal/graph.Validate.
func Validate(g *Graph) error {
	ids := make(map[string]bool, len(g.Nodes))
	sorted := make([]Node, len(g.Nodes))
	copy(sorted, g.Nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, n := range sorted {
		if ids[n.ID] {
			return &StructuralError{Kind: "duplicate_id", Msg: fmt.Sprintf("duplicate node id: %q", n.ID)}
		}
		ids[n.ID] = true
	}

	edges := make([]Edge, len(g.Edges))
	copy(edges, g.Edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	adjacency := make(map[string][]string)
	for _, e := range edges {
		if e.From == e.To {
			return &StructuralError{Kind: "self_reference", Msg: fmt.Sprintf("self-referential edge: %q -> %q", e.From, e.To)}
		}
		if !ids[e.From] {
			return &StructuralError{Kind: "dangling_edge", Msg: fmt.Sprintf("edge references unknown node: %q", e.From)}
		}
		if !ids[e.To] {
			return &StructuralError{Kind: "dangling_edge", Msg: fmt.Sprintf("edge references unknown node: %q", e.To)}
		}
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	color := make(map[string]int) // 0 white, 1 gray, 2 black
	var path []string

	var dfs func(node string) error
	dfs = func(node string) error {
		color[node] = 1
		path = append(path, node)

		neighbors := append([]string(nil), adjacency[node]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if color[next] == 1 {
				cycleStart := -1
				for i, n := range path {
					if n == next {
						cycleStart = i
						break
					}
				}
				cyclePath := append(append([]string(nil), path[cycleStart:]...), next)
				return &StructuralError{Kind: "cycle", Msg: fmt.Sprintf("cycle detected: %v", cyclePath)}
			}
			if color[next] == 0 {
				if err := dfs(next); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		color[node] = 2
		return nil
	}

	all := make([]string, 0, len(ids))
	for id := range ids {
		all = append(all, id)
	}
	sort.Strings(all)
	for _, id := range all {
		if color[id] == 0 {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateRefsMatchEdges checks that every "@id" reference appearing in a
// node's Inputs has a corresponding Edge{From: id, To: node}, so the
// declared dependency graph (used for topological compilation order) and
// the actual data-flow references never disagree.
func validateRefsMatchEdges(g *Graph) error {
	declared := make(map[[2]string]bool, len(g.Edges))
	for _, e := range g.Edges {
		declared[[2]string{e.From, e.To}] = true
	}
	for _, n := range g.Nodes {
		keys := make([]string, 0, len(n.Inputs))
		for k := range n.Inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ref, ok := parseRef(n.Inputs[k])
			if !ok {
				continue
			}
			if !declared[[2]string{ref, n.ID}] {
				return &StructuralError{
					Kind: "undeclared_reference",
					Msg:  fmt.Sprintf("node %q input %q references %q without a matching edge", n.ID, k, ref),
				}
			}
		}
	}
	return nil
}

package graphdoc

import "sort"

// Normalize sorts nodes by id, edges by (from, to), and each node's
// Outputs lexicographically, in place, so two documents describing the
// same graph serialize and hash identically regardless of source order.
func (g *Graph) Normalize() *Graph {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	for i := range g.Nodes {
		if g.Nodes[i].Outputs != nil {
			sort.Strings(g.Nodes[i].Outputs)
		}
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})
	return g
}

// Normalized returns a normalized deep copy of g, leaving g untouched.
func (g *Graph) Normalized() *Graph {
	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		inputs := make(map[string]any, len(n.Inputs))
		for k, v := range n.Inputs {
			inputs[k] = v
		}
		outputs := make([]string, len(n.Outputs))
		copy(outputs, n.Outputs)
		nodes[i] = Node{ID: n.ID, Type: n.Type, Inputs: inputs, Outputs: outputs}
	}
	edges := make([]Edge, len(g.Edges))
	copy(edges, g.Edges)

	cp := &Graph{Nodes: nodes, Edges: edges}
	return cp.Normalize()
}

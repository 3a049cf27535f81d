// Package graphdoc defines the on-disk JSON representation of a thunk
// graph a CLI caller submits — schema, parsing, normalization, hashing,
// structural validation, and compilation into a live thunk.Thunk graph —
// generalizing the teacher's internal/graph document format from
// build-task nodes to named-function thunk nodes.
package graphdoc

// Document is the top-level structure of a submitted graph file.
// SchemaVersion and Graph are required; Metadata may be omitted, since
// Parse does not check for it.
type Document struct {
	SchemaVersion string   `json:"schema_version"`
	Graph         Graph    `json:"graph"`
	Metadata      Metadata `json:"metadata"`
}

// Graph holds the node and edge lists.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a single thunk to construct. Type names a function registered in
// internal/builtin. Inputs maps named arguments to either a literal JSON
// value or a reference to another node's result, written "@<node id>".
// Outputs is carried through for documentation/tooling only — the
// scheduler has no notion of named multi-output thunks.
type Node struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Inputs  map[string]any `json:"inputs"`
	Outputs []string       `json:"outputs,omitempty"`
}

// Edge is a producer-to-consumer dependency: To's inputs depend on From's
// result. Every "@id" reference inside a node's Inputs must have a
// matching Edge (checked by Compile via validateRefsMatchEdges).
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Metadata is non-execution information about the document; all fields
// optional.
type Metadata struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

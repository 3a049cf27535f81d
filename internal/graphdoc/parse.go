package graphdoc

import (
	"encoding/json"
	"fmt"
	"io"
)

// SupportedSchemaVersion is the only schema version this package accepts.
const SupportedSchemaVersion = "1.0.0"

// Parse decodes a Document from JSON, rejecting unknown fields, then
// validates required fields and schema version.
func Parse(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, &SchemaError{Msg: fmt.Sprintf("invalid field type: %v", err)}
		}
		return nil, &ParseError{Msg: err.Error(), Err: err}
	}

	if err := validateRequired(&doc); err != nil {
		return nil, err
	}
	if doc.SchemaVersion != SupportedSchemaVersion {
		return nil, &SemanticError{
			Msg: fmt.Sprintf("unsupported schema_version %q, expected %q", doc.SchemaVersion, SupportedSchemaVersion),
		}
	}
	return &doc, nil
}

func validateRequired(doc *Document) error {
	if doc.SchemaVersion == "" {
		return &SchemaError{Field: "schema_version", Msg: "required field is missing"}
	}
	if doc.Graph.Nodes == nil {
		return &SchemaError{Field: "graph.nodes", Msg: "required field is missing"}
	}
	if doc.Graph.Edges == nil {
		return &SchemaError{Field: "graph.edges", Msg: "required field is missing"}
	}
	for i, n := range doc.Graph.Nodes {
		if n.ID == "" {
			return &SchemaError{Field: fmt.Sprintf("graph.nodes[%d].id", i), Msg: "required field is missing"}
		}
		if n.Type == "" {
			return &SchemaError{Field: fmt.Sprintf("graph.nodes[%d].type", i), Msg: "required field is missing"}
		}
		if n.Inputs == nil {
			return &SchemaError{Field: fmt.Sprintf("graph.nodes[%d].inputs", i), Msg: "required field is missing"}
		}
	}
	for i, e := range doc.Graph.Edges {
		if e.From == "" {
			return &SchemaError{Field: fmt.Sprintf("graph.edges[%d].from", i), Msg: "required field is missing"}
		}
		if e.To == "" {
			return &SchemaError{Field: fmt.Sprintf("graph.edges[%d].to", i), Msg: "required field is missing"}
		}
	}
	return nil
}

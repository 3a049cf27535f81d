package graphdoc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"thunkgraph/internal/builtin"
)

func validDoc() *Document {
	return &Document{
		SchemaVersion: SupportedSchemaVersion,
		Graph: Graph{
			Nodes: []Node{
				{ID: "a", Type: "const", Inputs: map[string]any{"value": 1.0}},
				{ID: "b", Type: "const", Inputs: map[string]any{"value": 2.0}},
				{ID: "sum", Type: "add", Inputs: map[string]any{"a": "@a", "b": "@b"}},
			},
			Edges: []Edge{
				{From: "a", To: "sum"},
				{From: "b", To: "sum"},
			},
		},
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	body := `{"schema_version":"1.0.0","graph":{"nodes":[],"edges":[]},"metadata":{},"bogus":1}`
	_, err := Parse(strings.NewReader(body))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsMissingSchemaVersion(t *testing.T) {
	body := `{"graph":{"nodes":[],"edges":[]},"metadata":{}}`
	_, err := Parse(strings.NewReader(body))
	if err == nil {
		t.Fatal("expected error for missing schema_version")
	}
	if _, ok := err.(*SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

func TestParseRejectsUnsupportedSchemaVersion(t *testing.T) {
	body := `{"schema_version":"9.9.9","graph":{"nodes":[],"edges":[]},"metadata":{}}`
	_, err := Parse(strings.NewReader(body))
	if err == nil {
		t.Fatal("expected error for unsupported schema_version")
	}
	if !errors.Is(err, ErrSemantic) {
		t.Fatalf("expected ErrSemantic, got %v", err)
	}
}

func TestParseValidDocument(t *testing.T) {
	body := `{
		"schema_version":"1.0.0",
		"graph":{
			"nodes":[{"id":"a","type":"const","inputs":{"value":1}}],
			"edges":[]
		},
		"metadata":{"name":"test"}
	}`
	doc, err := Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Graph.Nodes) != 1 || doc.Graph.Nodes[0].ID != "a" {
		t.Fatalf("unexpected parsed graph: %+v", doc.Graph)
	}
}

func TestNormalizeSortsNodesEdgesAndOutputs(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "z", Type: "t", Inputs: map[string]any{}, Outputs: []string{"y", "x"}},
			{ID: "a", Type: "t", Inputs: map[string]any{}},
		},
		Edges: []Edge{
			{From: "z", To: "a"},
			{From: "a", To: "z"},
		},
	}
	n := g.Normalized()
	if n.Nodes[0].ID != "a" || n.Nodes[1].ID != "z" {
		t.Fatalf("nodes not sorted: %+v", n.Nodes)
	}
	if n.Edges[0].From != "a" {
		t.Fatalf("edges not sorted: %+v", n.Edges)
	}
	if n.Nodes[1].Outputs[0] != "x" || n.Nodes[1].Outputs[1] != "y" {
		t.Fatalf("outputs not sorted: %+v", n.Nodes[1].Outputs)
	}
	if len(g.Nodes) != 2 || g.Nodes[0].ID != "z" {
		t.Fatal("Normalized() must not mutate the receiver")
	}
}

func TestComputeHashStableAcrossInputOrder(t *testing.T) {
	g1 := &Graph{
		Nodes: []Node{
			{ID: "a", Type: "t", Inputs: map[string]any{}},
			{ID: "b", Type: "t", Inputs: map[string]any{}},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}
	g2 := &Graph{
		Nodes: []Node{
			{ID: "b", Type: "t", Inputs: map[string]any{}},
			{ID: "a", Type: "t", Inputs: map[string]any{}},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}
	h1, err := ComputeHash(g1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := ComputeHash(g2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes should match regardless of slice order: %s != %s", h1, h2)
	}
}

func TestComputeHashChangesWithNodeType(t *testing.T) {
	g1 := &Graph{Nodes: []Node{{ID: "a", Type: "t", Inputs: map[string]any{}}}, Edges: []Edge{}}
	g2 := &Graph{Nodes: []Node{{ID: "a", Type: "u", Inputs: map[string]any{}}}, Edges: []Edge{}}
	h1, _ := ComputeHash(g1)
	h2, _ := ComputeHash(g2)
	if h1 == h2 {
		t.Fatal("hash should differ when a node's type changes")
	}
}

func TestValidateRefsMatchEdgesRejectsUndeclaredReference(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: "const", Inputs: map[string]any{"value": 1.0}},
			{ID: "b", Type: "const", Inputs: map[string]any{"value": "@a"}},
		},
		Edges: []Edge{},
	}
	err := validateRefsMatchEdges(g)
	if err == nil {
		t.Fatal("expected error for undeclared reference")
	}
	se, ok := err.(*StructuralError)
	if !ok || se.Kind != "undeclared_reference" {
		t.Fatalf("expected undeclared_reference StructuralError, got %T: %v", err, err)
	}
}

func TestValidateRefsMatchEdgesAcceptsDeclaredReference(t *testing.T) {
	if err := validateRefsMatchEdges(&validDoc().Graph); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseRefRecognizesAtPrefix(t *testing.T) {
	id, ok := parseRef("@foo")
	if !ok || id != "foo" {
		t.Fatalf("expected (\"foo\", true), got (%q, %v)", id, ok)
	}
	if _, ok := parseRef("foo"); ok {
		t.Fatal("expected non-@-prefixed string to not parse as a ref")
	}
	if _, ok := parseRef(3.0); ok {
		t.Fatal("expected non-string value to not parse as a ref")
	}
}

func TestCompileTopologicalOrderAndRoots(t *testing.T) {
	reg := builtin.NewRegistry()
	if err := builtin.RegisterStandard(reg); err != nil {
		t.Fatalf("unexpected error registering standard builtins: %v", err)
	}
	compiled, err := Compile(validDoc(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(compiled.Thunks) != 3 {
		t.Fatalf("expected 3 thunks, got %d", len(compiled.Thunks))
	}
	if len(compiled.Roots) != 1 || compiled.Roots[0] != "sum" {
		t.Fatalf("expected sole root \"sum\", got %v", compiled.Roots)
	}

	sum := compiled.Thunks["sum"]
	a := compiled.Thunks["a"]
	b := compiled.Thunks["b"]
	if len(sum.Inputs) != 2 {
		t.Fatalf("expected 2 inputs on sum, got %d", len(sum.Inputs))
	}
	refs := sum.Refs()
	if len(refs) != 2 {
		t.Fatalf("expected sum's inputs to both be refs, got %v", sum.Inputs)
	}
	if refs[0] != a.ID || refs[1] != b.ID {
		t.Fatalf("expected refs sorted by input key (a, b), got %v want [%v %v]", refs, a.ID, b.ID)
	}
}

func TestCompileWiredThunksExecuteCorrectly(t *testing.T) {
	reg := builtin.NewRegistry()
	if err := builtin.RegisterStandard(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	compiled, err := Compile(validDoc(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	av, err := compiled.Thunks["a"].Func(ctx, []any{1.0})
	if err != nil || av.(float64) != 1.0 {
		t.Fatalf("unexpected result for a: %v, %v", av, err)
	}
	bv, err := compiled.Thunks["b"].Func(ctx, []any{2.0})
	if err != nil || bv.(float64) != 2.0 {
		t.Fatalf("unexpected result for b: %v, %v", bv, err)
	}
	sumv, err := compiled.Thunks["sum"].Func(ctx, []any{av, bv})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sumv.(float64) != 3.0 {
		t.Fatalf("expected sum 3.0, got %v", sumv)
	}
}

func TestCompileRejectsUnregisteredType(t *testing.T) {
	doc := &Document{
		SchemaVersion: SupportedSchemaVersion,
		Graph: Graph{
			Nodes: []Node{{ID: "a", Type: "does-not-exist", Inputs: map[string]any{}}},
			Edges: []Edge{},
		},
	}
	reg := builtin.NewRegistry()
	_, err := Compile(doc, reg)
	if err == nil {
		t.Fatal("expected error for unregistered node type")
	}
	if !errors.Is(err, ErrSemantic) {
		t.Fatalf("expected ErrSemantic, got %T: %v", err, err)
	}
}

func TestCompileRejectsCyclicGraph(t *testing.T) {
	doc := &Document{
		SchemaVersion: SupportedSchemaVersion,
		Graph: Graph{
			Nodes: []Node{
				{ID: "a", Type: "const", Inputs: map[string]any{"value": "@b"}},
				{ID: "b", Type: "const", Inputs: map[string]any{"value": "@a"}},
			},
			Edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
		},
	}
	reg := builtin.NewRegistry()
	builtin.RegisterStandard(reg)
	_, err := Compile(doc, reg)
	if err == nil {
		t.Fatal("expected error for cyclic graph")
	}
	if !errors.Is(err, ErrStructure) {
		t.Fatalf("expected ErrStructure, got %T: %v", err, err)
	}
}

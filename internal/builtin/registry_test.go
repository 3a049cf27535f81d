package builtin

import (
	"context"
	"errors"
	"testing"
)

func echoFn(ctx context.Context, args map[string]any) (any, error) {
	return args["value"], nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", echoFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := r.Lookup("echo")
	if !ok {
		t.Fatal("expected echo to be registered")
	}
	v, err := fn(context.Background(), map[string]any{"value": 7})
	if err != nil || v != 7 {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", echoFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register("echo", echoFn)
	if err == nil {
		t.Fatal("expected error for duplicate name")
	}
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", echoFn); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestLookupUnknownNameNotOK(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("nope"); ok {
		t.Fatal("expected lookup miss for unregistered name")
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", echoFn)
	r.Register("alpha", echoFn)
	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestRegisterStandardFunctions(t *testing.T) {
	r := NewRegistry()
	if err := RegisterStandard(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	constFn, _ := r.Lookup("const")
	v, err := constFn(ctx, map[string]any{"value": "hi"})
	if err != nil || v != "hi" {
		t.Fatalf("unexpected const result: %v, %v", v, err)
	}

	addFn, _ := r.Lookup("add")
	sum, err := addFn(ctx, map[string]any{"a": 2.0, "b": 3})
	if err != nil || sum.(float64) != 5.0 {
		t.Fatalf("unexpected add result: %v, %v", sum, err)
	}

	concatFn, _ := r.Lookup("concat")
	s, err := concatFn(ctx, map[string]any{"left": "foo", "right": "bar"})
	if err != nil || s != "foobar" {
		t.Fatalf("unexpected concat result: %v, %v", s, err)
	}
}

func TestAddRejectsNonNumeric(t *testing.T) {
	r := NewRegistry()
	RegisterStandard(r)
	addFn, _ := r.Lookup("add")
	_, err := addFn(context.Background(), map[string]any{"a": "x", "b": 1.0})
	if err == nil {
		t.Fatal("expected error for non-numeric operand")
	}
}

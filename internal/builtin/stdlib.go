package builtin

import (
	"context"
	"fmt"
)

// RegisterStandard populates r with a small set of general-purpose
// functions, enough to express non-trivial example graphs (arithmetic and
// string composition) without requiring every CLI user to supply their own
// registry. Real deployments are expected to register domain-specific
// functions of their own alongside or instead of these.
func RegisterStandard(r *Registry) error {
	fns := map[string]Func{
		"const": func(ctx context.Context, args map[string]any) (any, error) {
			return args["value"], nil
		},
		"add": func(ctx context.Context, args map[string]any) (any, error) {
			a, err := asFloat(args["a"])
			if err != nil {
				return nil, err
			}
			b, err := asFloat(args["b"])
			if err != nil {
				return nil, err
			}
			return a + b, nil
		},
		"concat": func(ctx context.Context, args map[string]any) (any, error) {
			return fmt.Sprintf("%v%v", args["left"], args["right"]), nil
		},
	}
	for name, fn := range fns {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("builtin: expected a number, got %T", v)
	}
}

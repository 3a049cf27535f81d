package cliapp

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"thunkgraph/internal/builtin"
	"thunkgraph/internal/processor"
)

// ListProcessors discovers on-disk processor plugin manifests under root
// and prints them alongside the statically registered builtin functions,
// so an operator can see both "what processor kinds claim to exist" and
// "what functions a graph document can actually invoke".
func ListProcessors(w io.Writer, root string, log zerolog.Logger) error {
	discovered, errs := processor.Discover(root, log)
	for _, err := range errs {
		fmt.Fprintf(w, "warning: %v\n", err)
	}

	fmt.Fprintln(w, "processor manifests:")
	if len(discovered.Manifests) == 0 {
		fmt.Fprintln(w, "  (none discovered under", root+")")
	}
	for _, m := range discovered.Manifests {
		fmt.Fprintf(w, "  %s (version %s): %v\n", m.Kind, m.Version, m.Capabilities)
	}

	reg := builtin.NewRegistry()
	if err := builtin.RegisterStandard(reg); err != nil {
		return fmt.Errorf("cliapp: register builtins: %w", err)
	}
	fmt.Fprintln(w, "registered builtin functions:")
	for _, name := range reg.Names() {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// DefaultPluginsRoot is a conventional location for third-party processor
// manifests. The CLI does not read it: its discovery root comes from
// internal/config, whose default is "./plugins".
const DefaultPluginsRoot = ".thunkgraph/processors"

// ManifestRegistry holds successfully discovered, validated processor
// manifests in deterministic (kind-sorted) order.
type ManifestRegistry struct {
	Manifests []Manifest
	ByKind    map[string]Manifest
}

// Discover scans root for processor-plugin subdirectories (non-recursive),
// loads/validates their manifests, and registers them. Directories without
// a processor.json are skipped; invalid manifests and duplicate kinds are
// logged and skipped rather than aborting discovery, matching
// pluginengine.DiscoverAndRegister's tolerance for a partially broken
// plugin directory.
func Discover(root string, log zerolog.Logger) (ManifestRegistry, []error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return ManifestRegistry{ByKind: map[string]Manifest{}}, nil
		}
		log.Warn().Err(err).Str("root", root).Msg("processor: failed to read plugins root")
		return ManifestRegistry{ByKind: map[string]Manifest{}}, []error{err}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	reg := ManifestRegistry{ByKind: make(map[string]Manifest)}
	var errs []error

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		dir := filepath.Join(root, ent.Name())
		manifestPath := filepath.Join(dir, "processor.json")

		if _, statErr := os.Stat(manifestPath); statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			err := fmt.Errorf("stat processor.json in %q: %w", dir, statErr)
			log.Warn().Err(err).Msg("processor: discovery error")
			errs = append(errs, err)
			continue
		}

		m, loadErr := LoadFile(manifestPath)
		if loadErr != nil {
			log.Warn().Err(loadErr).Str("dir", dir).Msg("processor: invalid manifest")
			errs = append(errs, loadErr)
			continue
		}

		if _, exists := reg.ByKind[m.Kind]; exists {
			err := fmt.Errorf("%w: %s", ErrDuplicateKind, m.Kind)
			log.Warn().Err(err).Msg("processor: discovery error")
			errs = append(errs, err)
			continue
		}
		reg.ByKind[m.Kind] = m
	}

	reg.Manifests = make([]Manifest, 0, len(reg.ByKind))
	for _, m := range reg.ByKind {
		reg.Manifests = append(reg.Manifests, m)
	}
	sort.Slice(reg.Manifests, func(i, j int) bool { return reg.Manifests[i].Kind < reg.Manifests[j].Kind })

	return reg, errs
}

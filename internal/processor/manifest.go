package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Manifest describes a third-party processor kind discovered on disk. It
// does not carry executable code — Go cannot load a compatible plugin
// without a matching compiled-in factory — so discovery only validates and
// registers the declared capability surface; the actual Vtable for a kind
// must be supplied in-process via Registry.Register by the binary that was
// built to support it. cmd/thunkgraph registers no such vtables; its
// processors command only lists the discovered manifests.
type Manifest struct {
	Kind           string   `json:"kind"`
	Version        string   `json:"version"`
	Capabilities   []string `json:"capabilities"`
	DefaultEnabled bool     `json:"default_enabled"`
	Description    string   `json:"description"`
}

// SupportedCapabilities returns the set of capability names a manifest may
// declare.
func SupportedCapabilities() map[string]struct{} {
	return map[string]struct{}{
		"iscompatible_func": {},
		"iscompatible_arg":  {},
		"execute":           {},
		"move":              {},
	}
}

// Validate checks that the manifest is well-formed per spec.md §6.
func Validate(m Manifest) error {
	if m.Kind == "" {
		return fmt.Errorf("%w: %w", ErrManifestInvalid, ErrMissingKind)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: %w", ErrManifestInvalid, ErrMissingVersion)
	}
	supported := SupportedCapabilities()
	for _, c := range m.Capabilities {
		if _, ok := supported[c]; !ok {
			return fmt.Errorf("%w: unsupported capability: %s", ErrManifestInvalid, c)
		}
	}
	return nil
}

// ParseJSON parses and validates a processor manifest from r.
func ParseJSON(r io.Reader) (Manifest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrManifestMalformed, err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return Manifest{}, fmt.Errorf("%w: trailing data", ErrManifestMalformed)
		}
		return Manifest{}, fmt.Errorf("%w: %w", ErrManifestMalformed, err)
	}
	if err := Validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ParseBytes is a convenience wrapper around ParseJSON.
func ParseBytes(data []byte) (Manifest, error) {
	return ParseJSON(bytes.NewReader(data))
}

// LoadFile loads and parses a manifest from a path.
func LoadFile(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("manifest not found: %w", err)
		}
		return Manifest{}, err
	}
	defer f.Close()
	return ParseJSON(f)
}

// LoadDir loads "processor.json" from a plugin directory.
func LoadDir(dir string) (Manifest, error) {
	return LoadFile(filepath.Join(dir, "processor.json"))
}

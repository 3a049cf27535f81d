package processor

import (
	"errors"
	"io/fs"
)

// Sentinel errors, following the Err* + Unwrap() convention used throughout
// this repository's other typed-error packages.
var (
	ErrUnsupported         = errors.New("processor: operation not supported")
	ErrSelectionExhausted  = errors.New("processor: selection exhausted")

	ErrManifestNotFound  = fs.ErrNotExist
	ErrManifestMalformed = errors.New("processor manifest malformed")
	ErrManifestInvalid   = errors.New("processor manifest invalid")
	ErrDuplicateKind     = errors.New("duplicate processor kind")
	ErrMissingKind       = errors.New("missing kind")
	ErrMissingVersion    = errors.New("missing version")
	ErrUnknownKind       = errors.New("unknown processor kind")
)

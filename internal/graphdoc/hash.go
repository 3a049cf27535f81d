package graphdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ComputeHash returns a stable hex-encoded SHA-256 hash of g's normalized
// nodes and edges: a document-level identity, separate from per-thunk
// CacheKeys (the scheduler's memo does not use it). Metadata is excluded
// deliberately: renaming or re-describing a graph should not change its
// identity.
func ComputeHash(g *Graph) (string, error) {
	data, err := json.Marshal(g.Normalized())
	if err != nil {
		return "", &ParseError{Msg: "failed to serialize graph for hashing", Err: err}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

package server

import (
	"encoding/hex"
	"fmt"

	"github.com/smilemakc/wfkernel/internal/snapshot"
)

// hexID renders a content-addressed snapshot id as a hex string, the same
// encoding SnapshotModel.ID persists.
func hexID(id snapshot.ID) string {
	return hex.EncodeToString(id[:])
}

// parseSnapshotID parses a hex-encoded snapshot id back into its fixed-size
// array form.
func parseSnapshotID(s string) (snapshot.ID, error) {
	var id snapshot.ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid snapshot id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid snapshot id length: got %d bytes, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

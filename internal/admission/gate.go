// Package admission implements the Admission Gate (C2): validates a case's
// input payload against the current snapshot's schema before the case
// consumes any execution resources.
package admission

import (
	"errors"
	"fmt"

	"github.com/smilemakc/wfkernel/internal/snapshot"
)

// Failure classes. All are fatal for the case: it never enters Created; the
// caller may retry with corrected input.
var (
	ErrSchemaMismatch = errors.New("admission: schema mismatch")
	ErrUnknownTerm    = errors.New("admission: unknown term")
	ErrSizeExceeded   = errors.New("admission: aggregate input size exceeded")
)

// Limits configures the size ceiling Gate enforces.
type Limits struct {
	MaxInputBytes int64 // 0 = unlimited
}

// Gate is the C2 Admission Gate.
type Gate struct {
	limits Limits
}

// New creates a Gate with the given limits.
func New(limits Limits) *Gate {
	return &Gate{limits: limits}
}

// RequiredPredicate names a predicate the schema requires to be present on
// admission, together with the Go-level kind its value must satisfy.
type RequiredPredicate struct {
	Name string
	Kind string // "string", "number", "bool", "iri"
}

// Schema is the subset of a snapshot's schema the gate checks: required
// predicates and referenced-IRI resolvability is checked against the
// snapshot's term interner.
type Schema struct {
	Required []RequiredPredicate
}

// Admit checks input against snapshot's schema. Checks performed, in order:
// required predicates present, value types compatible, referenced IRIs
// resolvable under the snapshot's interner, and aggregate size within
// configured limits.
func (g *Gate) Admit(input map[string]any, schema Schema, snap *snapshot.Snapshot) error {
	if g.limits.MaxInputBytes > 0 {
		if size := estimateSize(input); size > g.limits.MaxInputBytes {
			return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrSizeExceeded, size, g.limits.MaxInputBytes)
		}
	}

	for _, req := range schema.Required {
		v, ok := input[req.Name]
		if !ok {
			return fmt.Errorf("%w: missing required predicate %q", ErrSchemaMismatch, req.Name)
		}
		if !kindMatches(v, req.Kind) {
			return fmt.Errorf("%w: predicate %q expected kind %q", ErrSchemaMismatch, req.Name, req.Kind)
		}
		if req.Kind == "iri" {
			term, _ := v.(string)
			if snap != nil && snap.Terms != nil {
				if _, ok := snap.Terms.Resolve(term); !ok {
					return fmt.Errorf("%w: %q", ErrUnknownTerm, term)
				}
			}
		}
	}
	return nil
}

func kindMatches(v any, kind string) bool {
	switch kind {
	case "string", "iri":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case int, int64, float64, float32:
			return true
		default:
			return false
		}
	case "bool":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

func estimateSize(v any) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val))
	case []byte:
		return int64(len(val))
	case map[string]any:
		var size int64
		for k, vv := range val {
			size += int64(len(k)) + estimateSize(vv)
		}
		return size
	case []any:
		var size int64
		for _, item := range val {
			size += estimateSize(item)
		}
		return size
	default:
		return 8
	}
}

// Package snapshot implements the Snapshot Store (C1): custody of immutable,
// content-addressed workflow/schema artifacts and the single atomically
// loadable "current" descriptor hot-path readers consult.
package snapshot

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// ID is a content-addressed snapshot identifier: the first 32 bytes of a
// blake2b-256 digest over the snapshot's canonical byte encoding.
type ID [32]byte

// Snapshot (Σ) is the immutable bundle of workflow specs, schema, and
// precompiled pattern metadata. Invariant S1: once created, content and id
// are forever immutable — callers never mutate a *Snapshot in place.
type Snapshot struct {
	id       ID
	parentID ID
	hasParent bool

	Specs  []*workflow.Spec
	Terms  *Interner
	Ready  bool // production-ready flag, set before Promote will accept it

	createdAt time.Time
}

// ID returns the snapshot's content-addressed id.
func (s *Snapshot) ID() ID { return s.id }

// ParentID returns the snapshot this one was derived from, and whether it
// has one (snapshots form a DAG via parent_id).
func (s *Snapshot) ParentID() (ID, bool) { return s.parentID, s.hasParent }

// Build constructs a new Snapshot from the given specs and term interner,
// deriving its content-addressed id by hashing a canonical encoding. parent
// may be the zero ID with hasParent=false for a root snapshot.
func Build(specs []*workflow.Spec, terms *Interner, parent ID, hasParent bool) *Snapshot {
	s := &Snapshot{
		Specs:     specs,
		Terms:     terms,
		parentID:  parent,
		hasParent: hasParent,
		createdAt: time.Now(),
	}
	s.id = contentHash(s)
	return s
}

// contentHash computes the self-hash over a canonical encoding of the
// snapshot's specs and parent id, giving the idempotence property of
// spec.md §8 property 6: re-hashing the same bytes yields the same id.
func contentHash(s *Snapshot) ID {
	h, _ := blake2b.New256(nil)
	if s.hasParent {
		h.Write(s.parentID[:])
	}
	for _, spec := range s.Specs {
		h.Write([]byte(spec.ID))
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(spec.Tasks)))
		h.Write(n[:])
		for _, t := range spec.Tasks {
			h.Write([]byte(t.ID))
			h.Write([]byte{byte(t.Split), byte(t.Join)})
		}
	}
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// Interner is a minimal-perfect-hash-style IRI→id table. A true MPHF is
// built offline per snapshot publication; at runtime this wraps the
// resulting immutable lookup table (read-only after Build, safe for
// concurrent hot-path reads without locking).
type Interner struct {
	mu     sync.RWMutex // taken by Intern, Freeze and export; Resolve never takes it
	byTerm map[string]uint64
	frozen bool
}

// NewInterner creates an empty, mutable interner.
func NewInterner() *Interner {
	return &Interner{byTerm: make(map[string]uint64)}
}

// Intern assigns (or returns the existing) id for term. Valid only before
// Freeze; calling it afterward panics, since a frozen interner backs
// hot-path reads and must never be mutated.
func (i *Interner) Intern(term string) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.frozen {
		panic("snapshot: Intern called on a frozen Interner")
	}
	if id, ok := i.byTerm[term]; ok {
		return id
	}
	id := uint64(len(i.byTerm)) + 1
	i.byTerm[term] = id
	return id
}

// Freeze marks the interner immutable; after this, Resolve may be called
// concurrently without locking (the lock was only needed to serialize
// construction).
func (i *Interner) Freeze() {
	i.mu.Lock()
	i.frozen = true
	i.mu.Unlock()
}

// Resolve looks up an interned id by term. Safe for concurrent use once
// frozen.
func (i *Interner) Resolve(term string) (uint64, bool) {
	id, ok := i.byTerm[term]
	return id, ok
}

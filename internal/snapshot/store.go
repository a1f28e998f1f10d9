package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Failure classes for the Snapshot Store. None are retryable by the store
// itself; the caller decides (§4.1).
var (
	ErrNotFound           = errors.New("snapshot: not found")
	ErrInvariantViolation = errors.New("snapshot: invariant violation")
	ErrPromotionBlocked   = errors.New("snapshot: promotion blocked")
)

// Descriptor is the small, atomically-loadable record a single global
// pointer references. Hot-path readers load it lock-free; promoters publish
// a new one via a single atomic store with release ordering.
type Descriptor struct {
	SnapshotID     ID
	Generation     uint64
	EpochTimestamp int64
}

// PromotionGate is a pluggable policy consulted by Promote beyond the bare
// "production-ready" flag — resolves Open Question 4. Additional policies
// (rollback windows, SLO compliance) are deployment concerns layered behind
// this interface, not fixed core semantics.
type PromotionGate interface {
	// Allow reports whether candidate may be promoted given the set of
	// snapshot ids currently bound to in-flight cases. lookup resolves a
	// snapshot id against the Store, for gates that need to walk ancestry.
	Allow(candidate *Snapshot, inFlight map[ID]int, lookup func(ID) (*Snapshot, bool)) error
}

// NoInFlightConflict is the one concrete built-in PromotionGate: it blocks
// promotion if any in-flight case's bound snapshot id would become
// unreachable from the new current pointer (i.e. is not an ancestor of, nor
// equal to, the candidate).
type NoInFlightConflict struct{}

// Allow implements PromotionGate. It walks candidate's parent chain via
// lookup, collecting every ancestor id (including candidate's own id), then
// rejects promotion if any snapshot id with a nonzero in-flight count falls
// outside that reachable set.
func (NoInFlightConflict) Allow(candidate *Snapshot, inFlight map[ID]int, lookup func(ID) (*Snapshot, bool)) error {
	reachable := map[ID]bool{candidate.id: true}
	cur := candidate
	for {
		parent, ok := cur.ParentID()
		if !ok {
			break
		}
		reachable[parent] = true
		next, found := lookup(parent)
		if !found {
			break
		}
		cur = next
	}
	for id, count := range inFlight {
		if count == 0 || reachable[id] {
			continue
		}
		return fmt.Errorf("snapshot %x has %d in-flight case(s) that would become unreachable", id, count)
	}
	return nil
}

// Store is the Snapshot Store (C1): custody of immutable snapshots plus
// the atomic current descriptor.
type Store struct {
	mu        sync.RWMutex
	byID      map[ID]*Snapshot
	readyIDs  map[ID]bool
	current   atomic.Pointer[Descriptor]
	gate      PromotionGate
	inFlight  map[ID]int // snapshot id -> count of cases currently bound to it
	inFlightM sync.Mutex

	cache    Cache
	cacheTTL time.Duration
}

// NewStore creates an empty Store with the given promotion gate (defaults
// to NoInFlightConflict if nil).
func NewStore(gate PromotionGate) *Store {
	if gate == nil {
		gate = NoInFlightConflict{}
	}
	return &Store{
		byID:     make(map[ID]*Snapshot),
		readyIDs: make(map[ID]bool),
		gate:     gate,
		inFlight: make(map[ID]int),
	}
}

// Publish computes the content hash, inserts the snapshot into the store,
// and returns its id. It fails if the spec's W1 invariant does not hold
// (Snapshot.Build's caller is expected to have called Spec.Index/Validate,
// but Publish re-validates defensively since a publish is not a hot-path
// call).
func (st *Store) Publish(s *Snapshot) (ID, error) {
	for _, spec := range s.Specs {
		if err := spec.Validate(); err != nil {
			return ID{}, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
	}
	st.mu.Lock()
	st.byID[s.ID()] = s
	st.mu.Unlock()

	// The cache tier is an optimization, not the source of truth; a
	// write-through failure does not fail the publish.
	_ = st.writeThrough(context.Background(), s)
	return s.ID(), nil
}

// MarkReady flips a published snapshot's production-ready flag, the
// Preparing→Ready transition of the promotion state machine modeled on the
// knhk-promotion crate. Promote refuses any snapshot that has not passed
// through this call.
func (st *Store) MarkReady(id ID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.Ready = true
	st.readyIDs[id] = true
	return nil
}

// Load looks up a snapshot by id. On a local miss it falls through to the
// cache tier (if one is attached via SetCache) before reporting ErrNotFound,
// and backfills the local map on a cache hit.
func (st *Store) Load(id ID) (*Snapshot, error) {
	st.mu.RLock()
	s, ok := st.byID[id]
	st.mu.RUnlock()
	if ok {
		return s, nil
	}

	if cached, ok := st.readThrough(context.Background(), id); ok {
		st.mu.Lock()
		st.byID[id] = cached
		st.mu.Unlock()
		return cached, nil
	}
	return nil, ErrNotFound
}

// Init publishes the first descriptor, required before GetCurrent returns a
// valid value. It does not itself require the snapshot to be Ready — bring-
// up is allowed to start from an unpromoted baseline.
func (st *Store) Init(id ID) error {
	if _, err := st.Load(id); err != nil {
		return err
	}
	st.current.Store(&Descriptor{SnapshotID: id, Generation: 0, EpochTimestamp: time.Now().UnixNano()})
	return nil
}

// GetCurrent performs a lock-free atomic load. This is the only Store call
// allowed on the hot path. It is guaranteed to return a valid descriptor
// once Init has been called; a nil return indicates Init was never called
// (a caller bug, not a runtime condition).
func (st *Store) GetCurrent() *Descriptor {
	return st.current.Load()
}

// Promote atomically stores a new descriptor with generation = previous+1.
// It fails if id is not valid, not marked production-ready, or if the
// promotion gate rejects it given currently in-flight cases.
func (st *Store) Promote(id ID) error {
	s, err := st.Load(id)
	if err != nil {
		return err
	}
	if !s.Ready {
		return fmt.Errorf("%w: snapshot not marked production-ready", ErrPromotionBlocked)
	}

	st.inFlightM.Lock()
	snapshot := make(map[ID]int, len(st.inFlight))
	for k, v := range st.inFlight {
		snapshot[k] = v
	}
	st.inFlightM.Unlock()

	if err := st.gate.Allow(s, snapshot, st.lookupLocked); err != nil {
		return fmt.Errorf("%w: %v", ErrPromotionBlocked, err)
	}

	prev := st.current.Load()
	gen := uint64(1)
	if prev != nil {
		gen = prev.Generation + 1
	}
	st.current.Store(&Descriptor{SnapshotID: id, Generation: gen, EpochTimestamp: time.Now().UnixNano()})
	return nil
}

// BindCase records that a case is now running against snapshot id, for the
// promotion gate's in-flight accounting. ReleaseCase must be called when the
// case completes.
func (st *Store) BindCase(id ID) {
	st.inFlightM.Lock()
	st.inFlight[id]++
	st.inFlightM.Unlock()
}

// lookupLocked resolves a snapshot id against the store, for use as a
// PromotionGate's ancestry-walk callback.
func (st *Store) lookupLocked(id ID) (*Snapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.byID[id]
	return s, ok
}

// ReleaseCase releases a case's binding to snapshot id.
func (st *Store) ReleaseCase(id ID) {
	st.inFlightM.Lock()
	if st.inFlight[id] > 0 {
		st.inFlight[id]--
	}
	if st.inFlight[id] == 0 {
		delete(st.inFlight, id)
	}
	st.inFlightM.Unlock()
}

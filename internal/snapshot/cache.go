package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// Cache is the distributed read-through cache tier Load consults on a local
// miss, and Publish populates on write. Deliberately narrow: it matches
// infrastructure/cache.RedisCache's Get/Set methods structurally, so that
// type satisfies this interface with no adapter required.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

const defaultCacheTTL = 10 * time.Minute

// SetCache attaches a distributed cache tier to the store. Nil disables it
// (the default); ttl <= 0 falls back to defaultCacheTTL. Publish writes
// through to the cache best-effort, and Load falls back to it on a local
// miss, the shape SPEC_FULL.md's DOMAIN STACK describes for the Snapshot
// Store's optional cache tier.
func (st *Store) SetCache(c Cache, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	st.cache = c
	st.cacheTTL = ttl
}

func cacheKey(id ID) string {
	return fmt.Sprintf("wfkernel:snapshot:%x", id[:])
}

// cacheEntry is the wire shape persisted to the cache tier: Snapshot's id,
// parent linkage, and Interner contents are unexported fields, so they are
// copied out explicitly rather than marshaling the struct directly.
type cacheEntry struct {
	ID        ID
	ParentID  ID
	HasParent bool
	Specs     []*workflow.Spec
	Terms     map[string]uint64
	Ready     bool
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(cacheEntry{
		ID:        s.id,
		ParentID:  s.parentID,
		HasParent: s.hasParent,
		Specs:     s.Specs,
		Terms:     s.Terms.export(),
		Ready:     s.Ready,
	})
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	terms := NewInterner()
	for term, id := range e.Terms {
		terms.byTerm[term] = id
	}
	terms.Freeze()
	return &Snapshot{
		id:        e.ID,
		parentID:  e.ParentID,
		hasParent: e.HasParent,
		Specs:     e.Specs,
		Terms:     terms,
		Ready:     e.Ready,
		createdAt: time.Now(),
	}, nil
}

// writeThrough best-effort caches s; failures are logged-and-ignored by the
// caller's discretion (the cache is an optimization, never the source of
// truth — the local byID map always wins).
func (st *Store) writeThrough(ctx context.Context, s *Snapshot) error {
	if st.cache == nil {
		return nil
	}
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	return st.cache.Set(ctx, cacheKey(s.id), data, st.cacheTTL)
}

// readThrough attempts to resolve id from the cache tier on a local miss.
func (st *Store) readThrough(ctx context.Context, id ID) (*Snapshot, bool) {
	if st.cache == nil {
		return nil, false
	}
	raw, err := st.cache.Get(ctx, cacheKey(id))
	if err != nil || raw == "" {
		return nil, false
	}
	s, err := decodeSnapshot([]byte(raw))
	if err != nil {
		return nil, false
	}
	return s, true
}

// export copies the interner's terms for cache serialization. Safe to call
// whether or not the interner is frozen.
func (i *Interner) export() map[string]uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]uint64, len(i.byTerm))
	for k, v := range i.byTerm {
		out[k] = v
	}
	return out
}

package receipt

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrFoldMismatch is returned when a fold's recomputed hash does not match
// its declared root hash — fatal per §7, stops the emitting executor.
var ErrFoldMismatch = errors.New("receipt: fold verification mismatch")

// Verifier holds a capacity-bounded table of root hashes (the Merkle spine)
// and checks incoming folds with VerifyFold: a positive count and a root hash
// matching a fresh recomputation. The table itself is a lock-free sharded map
// (xsync.MapOf), matching the teacher's direct dependency on xsync for
// highly-contended concurrent maps — this is the hottest shared structure
// in the fold pipeline, touched by every case's receipt stream.
type Verifier struct {
	capacity int
	hashSeed uint64
	table    *xsync.MapOf[uint64, Fold]
	size     int64
	order    *orderedKeys
}

// orderedKeys tracks FIFO insertion order so Compact can find the oldest
// entries without a full scan of the concurrent map.
type orderedKeys struct {
	mu   sync.Mutex
	keys []uint64
}

func (o *orderedKeys) push(k uint64) {
	o.mu.Lock()
	o.keys = append(o.keys, k)
	o.mu.Unlock()
}

func (o *orderedKeys) popOldestPair() (uint64, uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.keys) < 2 {
		return 0, 0, false
	}
	a, b := o.keys[0], o.keys[1]
	o.keys = o.keys[2:]
	return a, b, true
}

func (o *orderedKeys) pushFront(k uint64) {
	o.mu.Lock()
	o.keys = append([]uint64{k}, o.keys...)
	o.mu.Unlock()
}

// NewVerifier creates a verifier whose fold table holds at most capacity
// entries before Compact is triggered, hashing with the default (zero) seed.
func NewVerifier(capacity int) *Verifier {
	return NewVerifierWithSeed(capacity, 0)
}

// NewVerifierWithSeed is NewVerifier with an explicit ReceiptHasher seed,
// used consistently by Compact's internal re-hashing of summary folds.
func NewVerifierWithSeed(capacity int, seed uint64) *Verifier {
	if capacity <= 0 {
		capacity = 1
	}
	return &Verifier{
		capacity: capacity,
		hashSeed: seed,
		table:    xsync.NewMapOf[uint64, Fold](),
		order:    &orderedKeys{},
	}
}

// VerifyFold checks f's shape: it must have at least one receipt and a hash
// matching a fresh recomputation. It does not check the root's ticks against
// a budget and does not reject an all-zero root. Mismatches are fatal.
func (v *Verifier) VerifyFold(f Fold, h *ReceiptHasher) error {
	if f.Count <= 0 {
		return ErrFoldMismatch
	}
	if f.RootHash != h.HashFold(f.Root, f.Count) {
		return ErrFoldMismatch
	}
	return nil
}

// AddFold inserts a verified fold into the table, keyed by its root hash,
// and triggers Compact if capacity is now exceeded. It returns the
// previous fold stored at that key, if any (folds with colliding root
// hashes are presumed identical content — the hash function is the
// identity-of-content for this table).
func (v *Verifier) AddFold(f Fold) (Fold, bool) {
	prev, loaded := v.table.LoadOrStore(f.RootHash, f)
	if !loaded {
		v.order.push(f.RootHash)
		if atomic.AddInt64(&v.size, 1) > int64(v.capacity) {
			v.Compact()
		}
	}
	return prev, loaded
}

// FoldTableSize reports the current number of entries in the fold table.
func (v *Verifier) FoldTableSize() int {
	return v.table.Size()
}

// Compact combines the two oldest folds pairwise into a summary fold,
// bounding memory once the table exceeds capacity — the Merkle-spine
// compaction step of §4.6 step 5.
func (v *Verifier) Compact() {
	a, b, ok := v.order.popOldestPair()
	if !ok {
		return
	}
	fa, okA := v.table.LoadAndDelete(a)
	fb, okB := v.table.LoadAndDelete(b)
	if !okA || !okB {
		if okA {
			v.order.pushFront(a)
		}
		if okB {
			v.order.pushFront(b)
		}
		return
	}
	atomic.AddInt64(&v.size, -2)

	summary := Fold{
		Root:      Compose(fa.Root, fb.Root),
		Count:     fa.Count + fb.Count,
		FirstTick: minU64(fa.FirstTick, fb.FirstTick),
		LastTick:  maxU64(fa.LastTick, fb.LastTick),
		Degraded:  fa.Degraded || fb.Degraded,
	}
	h := NewReceiptHasher(v.hashSeed)
	summary.RootHash = h.HashFold(summary.Root, summary.Count)

	if _, loaded := v.table.LoadOrStore(summary.RootHash, summary); !loaded {
		v.order.push(summary.RootHash)
		atomic.AddInt64(&v.size, 1)
	}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

package receipt

import "sync"

// Delta is a single receipt fragment entering the fold pipeline, tagged with
// the wall/tick-clock position it was observed at, from which TakeFold derives
// a block's FirstTick and LastTick.
type Delta struct {
	Receipt Receipt
	Tick    uint64
}

// Fold is the composed block root produced once a DeltaComposer has gathered
// 2^k deltas, together with the block's bookkeeping needed by Verify.
type Fold struct {
	Root       Receipt
	RootHash   uint64
	Count      int
	FirstTick  uint64
	LastTick   uint64
	Degraded   bool // true if any composed receipt's Ticks exceeded the tier's budget
}

// DeltaComposer batches receipts into blocks of 2^k (default k=3, i.e. 8 per
// block) and composes each block via the pure ⊕ law, associatively reducible
// in any order — this is what the block is for: it is the unit the hash
// stage, the verify stage, and a parallel/SIMD fold all operate on.
type DeltaComposer struct {
	mu       sync.Mutex
	blockLen int
	pending  []Delta
}

// NewDeltaComposer creates a composer with the given block length (must be a
// power of two; 8 is the spec's default, k=3).
func NewDeltaComposer(blockLen int) *DeltaComposer {
	if blockLen <= 0 {
		blockLen = 8
	}
	return &DeltaComposer{blockLen: blockLen}
}

// ComposeDelta appends d to the current block. It returns true once the
// block has reached blockLen deltas and is ready for TakeFold.
func (c *DeltaComposer) ComposeDelta(d Delta) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, d)
	return len(c.pending) >= c.blockLen
}

// TakeFold drains the current block and returns its composed Fold. Calling
// TakeFold before the block is full is valid — it folds a short (partial)
// block, used when an executor must flush on shutdown or timeout.
func (c *DeltaComposer) TakeFold(rBudget uint32, h *ReceiptHasher) Fold {
	c.mu.Lock()
	block := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(block) == 0 {
		return Fold{}
	}

	root := block[0].Receipt
	first, last := block[0].Tick, block[0].Tick
	degraded := root.Ticks > rBudget
	for _, d := range block[1:] {
		root = Compose(root, d.Receipt)
		if d.Tick < first {
			first = d.Tick
		}
		if d.Tick > last {
			last = d.Tick
		}
		if d.Receipt.Ticks > rBudget {
			degraded = true
		}
	}

	return Fold{
		Root:      root,
		RootHash:  h.HashFold(root, len(block)),
		Count:     len(block),
		FirstTick: first,
		LastTick:  last,
		Degraded:  degraded,
	}
}

// ReceiptHasher produces a deterministic content hash for a composed fold
// root, seeded once at construction (mirrors knhk's ReceiptHasher::new(seed)).
type ReceiptHasher struct {
	seed uint64
}

// NewReceiptHasher creates a hasher with the given seed. The same seed
// hashing the same fold always yields the same hash (determinism is what
// lets Verify re-derive a root independently).
func NewReceiptHasher(seed uint64) *ReceiptHasher {
	return &ReceiptHasher{seed: seed}
}

// HashFold computes the root hash of a composed receipt plus its count,
// folding the seed into the content hash via XOR.
func (h *ReceiptHasher) HashFold(root Receipt, count int) uint64 {
	mixed := ContentHash(uint8(count), root.SpanID, root.Hash, uint64(root.Ticks), uint32(root.Lanes))
	return mixed ^ h.seed
}

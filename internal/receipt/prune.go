package receipt

import "sync"

// Pruner discards no-op deltas (all-zero content) and exact repeats within a
// sliding window, bounding memory before deltas ever reach the composer —
// modeled on knhk-hot's Pruner.
type Pruner struct {
	mu     sync.Mutex
	window int
	recent []uint64 // recent content hashes, oldest first
}

// NewPruner creates a pruner with the given sliding-window size (number of
// recent hashes retained for duplicate detection).
func NewPruner(window int) *Pruner {
	if window <= 0 {
		window = 100
	}
	return &Pruner{window: window}
}

// PruneDelta reports whether d should be discarded: either it is the
// identity receipt (all-zero content, a true no-op) or its hash repeats one
// already seen within the window (an idempotent retry of the same step).
func (p *Pruner) PruneDelta(d Delta) bool {
	if d.Receipt.IsZero() {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range p.recent {
		if h == d.Receipt.Hash {
			return true
		}
	}

	p.recent = append(p.recent, d.Receipt.Hash)
	if len(p.recent) > p.window {
		p.recent = p.recent[len(p.recent)-p.window:]
	}
	return false
}

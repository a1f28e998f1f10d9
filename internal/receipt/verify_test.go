package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_VerifyFoldAcceptsValidAndRejectsMismatch(t *testing.T) {
	v := NewVerifier(10)
	h := NewReceiptHasher(1)

	root := Receipt{Ticks: 3, Lanes: 1, SpanID: 0x1, Hash: 0x2}
	fold := Fold{Root: root, Count: 2, FirstTick: 1, LastTick: 2}
	fold.RootHash = h.HashFold(fold.Root, fold.Count)

	require.NoError(t, v.VerifyFold(fold, h))

	fold.RootHash ^= 1
	assert.ErrorIs(t, v.VerifyFold(fold, h), ErrFoldMismatch)

	assert.ErrorIs(t, v.VerifyFold(Fold{Count: 0}, h), ErrFoldMismatch)
}

func TestVerifier_AddFoldTracksSizeAndCompactsAtCapacity(t *testing.T) {
	v := NewVerifier(2)
	h := NewReceiptHasher(0)

	mkFold := func(tick uint64) Fold {
		root := Receipt{Ticks: 1, Lanes: 1, SpanID: tick, Hash: tick}
		f := Fold{Root: root, Count: 1, FirstTick: tick, LastTick: tick}
		f.RootHash = h.HashFold(f.Root, f.Count)
		return f
	}

	f1 := mkFold(1)
	f2 := mkFold(2)
	f3 := mkFold(3)

	_, loaded := v.AddFold(f1)
	assert.False(t, loaded)
	_, loaded = v.AddFold(f2)
	assert.False(t, loaded)

	// Exceeding capacity triggers Compact, which folds the two oldest
	// entries into one summary, so the table does not grow unbounded.
	_, loaded = v.AddFold(f3)
	assert.False(t, loaded)

	assert.LessOrEqual(t, v.FoldTableSize(), 3)
}

func TestVerifier_CompactUsesTheVerifiersConfiguredSeed(t *testing.T) {
	seed := uint64(7)
	v := NewVerifierWithSeed(2, seed)
	h := NewReceiptHasher(seed)

	mkFold := func(tick uint64) Fold {
		root := Receipt{Ticks: 1, Lanes: 1, SpanID: tick, Hash: tick}
		f := Fold{Root: root, Count: 1, FirstTick: tick, LastTick: tick}
		f.RootHash = h.HashFold(f.Root, f.Count)
		return f
	}

	f1, f2, f3 := mkFold(1), mkFold(2), mkFold(3)
	_, _ = v.AddFold(f1)
	_, _ = v.AddFold(f2)
	_, _ = v.AddFold(f3) // exceeds capacity, triggers Compact

	// The summary fold Compact inserted must be keyed by a hash computed
	// with the Verifier's own seed, not the zero seed.
	expected := h.HashFold(Compose(f1.Root, f2.Root), f1.Count+f2.Count)
	_, found := v.table.Load(expected)
	assert.True(t, found, "Compact must re-hash summary folds with the Verifier's configured seed")
}

func TestVerifier_AddFoldDedupsIdenticalRootHash(t *testing.T) {
	v := NewVerifier(10)
	f := Fold{Root: Receipt{Ticks: 1}, Count: 1, RootHash: 0x42}

	_, loaded := v.AddFold(f)
	assert.False(t, loaded)

	_, loaded = v.AddFold(f)
	assert.True(t, loaded, "re-adding the same root hash should report the previous entry")
	assert.Equal(t, 1, v.FoldTableSize())
}

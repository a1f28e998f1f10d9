// Package receipt implements the provenance fold (C6): the associative,
// commutative composition of per-operation receipts into Merkle-style
// commitments, grounded on the kernel's receipt fragments and modeled on the
// knhk-hot receipt_kernels fold/hash/verify/prune pipeline.
package receipt

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Receipt is the opaque 4-tuple every kernel invocation (and every warm-path
// step) produces: (ticks, lanes, span_id, hash).
type Receipt struct {
	Ticks  uint32
	Lanes  uint32
	SpanID uint64
	Hash   uint64
}

// Zero is the identity element of Compose: composing with it is a no-op.
var Zero = Receipt{}

// Compose implements the `⊕` composition law: max over ticks, sum over
// lanes, XOR over span id and content hash. It is associative and
// commutative by construction, which is what makes the fold safe to run in
// any order — in parallel, out of order, or as a pairwise tree.
func Compose(a, b Receipt) Receipt {
	return Receipt{
		Ticks:  max32(a.Ticks, b.Ticks),
		Lanes:  a.Lanes + b.Lanes,
		SpanID: a.SpanID ^ b.SpanID,
		Hash:   a.Hash ^ b.Hash,
	}
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// ContentHash computes the 64-bit content hash of a single operation given
// (op, s, p, o, k), resolving the open question spec.md leaves ambiguous:
// the low 8 bytes of a blake2b-256 digest over the big-endian encoding of
// the five fields, read back as a little-endian uint64. This is not a
// security boundary — only a deterministic, cheap provenance fingerprint.
func ContentHash(op uint8, s, p, o uint64, k uint32) uint64 {
	var buf [1 + 8 + 8 + 8 + 4]byte
	buf[0] = op
	binary.BigEndian.PutUint64(buf[1:9], s)
	binary.BigEndian.PutUint64(buf[9:17], p)
	binary.BigEndian.PutUint64(buf[17:25], o)
	binary.BigEndian.PutUint32(buf[25:29], k)
	digest := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint64(digest[:8])
}

// IsZero reports whether r is the identity element.
func (r Receipt) IsZero() bool {
	return r == Zero
}

package kernel

import "github.com/smilemakc/wfkernel/internal/receipt"

// Ctx binds a pinned SoA buffer and the current run for evaluation. All
// loads and stores the evaluator performs touch only ctx.soa, the IR, and
// the receipt — no allocation, no locking (§4.5 memory model).
type Ctx struct {
	soa *SoA
	run PredRun
}

// InitCtx binds the SoA arrays for subsequent PinRun/Eval* calls. The arrays
// must already be MaxRunLen long and 64-byte aligned (use NewAlignedSoA).
func InitCtx(soa *SoA) *Ctx {
	return &Ctx{soa: soa}
}

// PinRun sets the current run. It re-validates the H1 invariant defensively;
// callers on the hot path are expected to have already passed ValidateRun at
// admission, so this check never fails in steady state.
func (c *Ctx) PinRun(run PredRun) error {
	if run.Length < 0 || run.Length > MaxRunLen {
		return ErrInvalidRunLength
	}
	c.run = run
	return nil
}

// laneMask computes a per-lane bit (bit i set iff lane i matches) without
// branching on the result — the comparison itself is the only "branch", and
// it is over fixed-width integers, not control flow.
func laneMask(n int, pred func(i int) bool) uint8 {
	var mask uint8
	for i := 0; i < n; i++ {
		var bit uint8
		if pred(i) {
			bit = 1
		}
		mask |= bit << uint(i)
	}
	return mask
}

func popcount8(mask uint8) int {
	count := 0
	for mask != 0 {
		count += int(mask & 1)
		mask >>= 1
	}
	return count
}

// EvalBool evaluates a boolean IR over the pinned run and returns the boolean
// result together with a receipt carrying the observed ticks/lanes/span_id/hash.
// The dispatch below is a sequence of comparisons over the integer Op code,
// not a data-dependent branch on triple content — every opcode's body
// executes the same bounded-iteration lane scan regardless of which lane
// matches.
func (c *Ctx) EvalBool(ir IR, spanID uint64) (bool, receipt.Receipt) {
	m := StartMeasurement()
	n := c.run.Length
	off := c.run.Offset

	var result bool
	switch ir.Op {
	case OpAskSP:
		mask := laneMask(n, func(i int) bool { return c.soa.S[off+i] == ir.S && c.soa.P[off+i] == ir.P })
		result = mask != 0
	case OpAskSPO:
		mask := laneMask(n, func(i int) bool {
			return c.soa.S[off+i] == ir.S && c.soa.P[off+i] == ir.P && c.soa.O[off+i] == ir.O
		})
		result = mask != 0
	case OpAskOP:
		mask := laneMask(n, func(i int) bool { return c.soa.O[off+i] == ir.O && c.soa.P[off+i] == ir.P })
		result = mask != 0
	case OpCountSPGE, OpCountSPLE, OpCountSPEQ:
		mask := laneMask(n, func(i int) bool { return c.soa.S[off+i] == ir.S && c.soa.P[off+i] == ir.P })
		result = compareCount(popcount8(mask), ir.Op, ir.K)
	case OpCountOPGE, OpCountOPLE, OpCountOPEQ:
		mask := laneMask(n, func(i int) bool { return c.soa.O[off+i] == ir.O && c.soa.P[off+i] == ir.P })
		result = compareCount(popcount8(mask), ir.Op, ir.K)
	case OpUniqueSP:
		mask := laneMask(n, func(i int) bool { return c.soa.S[off+i] == ir.S && c.soa.P[off+i] == ir.P })
		result = n == 1 && mask != 0
	case OpCompareOEQ, OpCompareOGT, OpCompareOLT, OpCompareOGE, OpCompareOLE:
		mask := laneMask(n, func(i int) bool { return compareO(c.soa.O[off+i], ir.O, ir.Op) })
		result = mask != 0
	default:
		result = false
	}

	ticks := m.Stop()
	r := receipt.Receipt{
		Ticks:  ticks,
		Lanes:  uint32(n),
		SpanID: spanID,
		Hash:   receipt.ContentHash(uint8(ir.Op), uint64(ir.S), uint64(ir.P), uint64(ir.O), ir.K),
	}
	return result, r
}

func compareCount(count int, op Op, k uint32) bool {
	switch op {
	case OpCountSPGE, OpCountOPGE:
		return uint32(count) >= k
	case OpCountSPLE, OpCountOPLE:
		return uint32(count) <= k
	case OpCountSPEQ, OpCountOPEQ:
		return uint32(count) == k
	default:
		return false
	}
}

func compareO(have, want ID, op Op) bool {
	switch op {
	case OpCompareOEQ:
		return have == want
	case OpCompareOGT:
		return have > want
	case OpCompareOLT:
		return have < want
	case OpCompareOGE:
		return have >= want
	case OpCompareOLE:
		return have <= want
	default:
		return false
	}
}

// EvalConstruct8 copies the first ir.Construct8Len templates (at most
// MaxRunLen) of ir.Construct8Template into the caller-provided output buffers
// and returns the number of lanes written alongside the receipt. No lane mask
// is applied: every template up to Construct8Len is written.
func (c *Ctx) EvalConstruct8(ir IR, outS, outP, outO *[MaxRunLen]ID, spanID uint64) (int, receipt.Receipt) {
	m := StartMeasurement()

	n := ir.Construct8Len
	if n > MaxRunLen {
		n = MaxRunLen
	}
	written := 0
	for i := 0; i < n; i++ {
		t := ir.Construct8Template[i]
		outS[i] = t.S
		outP[i] = t.P
		outO[i] = t.O
		written++
	}

	ticks := m.Stop()
	r := receipt.Receipt{
		Ticks:  ticks,
		Lanes:  uint32(written),
		SpanID: spanID,
		Hash:   receipt.ContentHash(uint8(ir.Op), 0, 0, 0, uint32(written)),
	}
	return written, r
}

// EvalBatch8 runs up to MaxRunLen independent IRs in the order given (≺),
// respecting each IR's own per-op budget without amortizing them across the
// batch. It returns the count processed and fills results/receipts in place.
func (c *Ctx) EvalBatch8(irs []IR, spanID uint64, results []bool, receipts []receipt.Receipt) int {
	n := len(irs)
	if n > MaxRunLen {
		n = MaxRunLen
	}
	for i := 0; i < n; i++ {
		results[i], receipts[i] = c.EvalBool(irs[i], spanID)
	}
	return n
}

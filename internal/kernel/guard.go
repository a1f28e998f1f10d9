package kernel

import "errors"

// AOT guard failure classes. These are design-time errors (caller bugs), not
// runtime conditions — the kernel itself never returns an error (§7: "the
// hot-path kernel never returns errors at runtime").
var (
	ErrExceedsTickBudget = errors.New("kernel: ir worst-case cost exceeds the chatman constant")
	ErrInvalidRunLength  = errors.New("kernel: run length outside [0,8] or incompatible with op")
	ErrInvalidOperation  = errors.New("kernel: op is not in the enumerated hot-path set")
)

// ValidateRun runs the AOT guard over a (run, ir) pair before the run may be
// pinned. All checks described in §4.5 are performed here so the evaluator
// itself can stay branchless on the validated path.
func ValidateRun(run PredRun, ir IR) error {
	if !ir.Op.IsHot() {
		return ErrInvalidOperation
	}
	if run.Length < 0 || run.Length > MaxRunLen {
		return ErrInvalidRunLength
	}
	switch ir.Op {
	case OpUniqueSP:
		if run.Length != 1 {
			return ErrInvalidRunLength
		}
	case OpCountSPGE, OpCountSPLE, OpCountSPEQ, OpCountOPGE, OpCountOPLE, OpCountOPEQ:
		if int(ir.K) > run.Length {
			return ErrInvalidRunLength
		}
	case OpConstruct8:
		if run.Length > MaxRunLen || ir.Construct8Len > MaxRunLen {
			return ErrInvalidRunLength
		}
	}
	return nil
}

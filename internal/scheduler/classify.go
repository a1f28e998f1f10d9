// Package scheduler implements the three-tier Tick Scheduler (C4): it
// classifies each operation the case executor requests, enforces its
// budget, and routes it to the hot-path kernel or the warm engine.
package scheduler

import (
	"github.com/smilemakc/wfkernel/internal/kernel"
)

// Tier is the runtime class an operation is routed to.
type Tier uint8

const (
	TierR1 Tier = iota // hot: ≤ ChatmanConstant cycles
	TierW1             // warm: ≤ 500ms wall clock
	TierC1             // cold: best effort
)

func (t Tier) String() string {
	switch t {
	case TierR1:
		return "R1"
	case TierW1:
		return "W1"
	case TierC1:
		return "C1"
	default:
		return "unknown"
	}
}

// W1Budget and C1 are best-effort; R1's budget is the Chatman Constant.
const W1Budget = 500 // milliseconds

// Classify runs the AOT guard (§4.5) over run/ir and returns the tier it
// belongs to. Ops that fail validation are routed to W1 with equivalent
// semantics implemented by the warm engine, per §4.4.
func Classify(run kernel.PredRun, ir kernel.IR) Tier {
	if err := kernel.ValidateRun(run, ir); err != nil {
		return TierW1
	}
	return TierR1
}

// ClassifyCold is used by callers (persistent writes, external I/O, long-
// running analyses) that never go through the AOT guard at all.
func ClassifyCold() Tier { return TierC1 }

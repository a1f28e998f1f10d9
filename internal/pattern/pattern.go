// Package pattern implements the Pattern Registry (C3): given a pattern id
// in [1,43], produces an executor that advances case state by one step.
package pattern

import (
	"errors"
	"sort"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// ErrBoundsExceeded is returned by patterns 10, 28, and 29 when a per-case
// max_iterations or per-core max_depth bound is exceeded.
var ErrBoundsExceeded = errors.New("pattern: bounds exceeded")

// GuardEvaluator compiles and evaluates a task's XOR/OR-split guards against
// the case's current variable bindings. The scheduler (C4) supplies the
// concrete expr-lang-backed implementation; the pattern registry only
// depends on this narrow interface.
type GuardEvaluator interface {
	Eval(expression string, vars map[string]any) (bool, error)
}

// TimerService lets a pattern (16 Deferred Choice, 30/31 triggers) register
// for an external/timer event. The concrete implementation lives in the
// scheduler's timer wheel (C4).
type TimerService interface {
	AwaitEvent(caseID, taskID string) (token string)
}

// ExecutionContext carries everything a pattern executor needs to advance
// one case/task step.
type ExecutionContext struct {
	CaseID     string
	WorkflowID string
	Case       *workflow.Case
	Spec       *workflow.Spec
	Task       *workflow.Task
	ArrivedFrom string // the predecessor task id that just fired into Task, if any
	Eval       GuardEvaluator
	Timer      TimerService

	// DefaultMaxIterations/DefaultMaxDepth are the per-case/per-core
	// defaults (1000 / 100) used when a task does not declare its own.
	DefaultMaxIterations int
	DefaultMaxDepth      int
	CurrentDepth         int
}

// ExecutionResult is what a pattern executor reports back to the case
// executor's main loop: which arcs to enable, whether the task itself is
// now complete, any cancellations to enqueue, and an optional forced case
// transition (e.g. BoundsExceeded -> Failed, Cancel Case -> Cancelled).
type ExecutionResult struct {
	EnabledArcs    []string
	TaskCompleted  bool
	Cancellations  []string
	CaseTransition *workflow.CaseState
	Suspend        bool
	Err            error
}

// Executor advances case state by one step for a single pattern id.
type Executor interface {
	Execute(ctx ExecutionContext) (ExecutionResult, error)
}

// maxIterations resolves the effective bound for a task, falling back to
// the context default (1000) when the task does not declare one.
func maxIterations(ctx ExecutionContext) int {
	if ctx.Task.MaxIterations > 0 {
		return ctx.Task.MaxIterations
	}
	if ctx.DefaultMaxIterations > 0 {
		return ctx.DefaultMaxIterations
	}
	return 1000
}

func maxDepth(ctx ExecutionContext) int {
	if ctx.DefaultMaxDepth > 0 {
		return ctx.DefaultMaxDepth
	}
	return 100
}

// sortedArcs returns ctx.Spec.Outgoing(task) sorted by target task id so
// that tie-breaking (lowest task id wins) is deterministic regardless of
// declaration order.
func sortedArcs(spec *workflow.Spec, taskID string) []*workflow.Arc {
	arcs := append([]*workflow.Arc(nil), spec.Outgoing(taskID)...)
	sort.Slice(arcs, func(i, j int) bool { return arcs[i].To < arcs[j].To })
	return arcs
}

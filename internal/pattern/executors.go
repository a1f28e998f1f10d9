package pattern

import (
	"fmt"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

func internalKey(prefix, taskID string) string { return "__pattern_" + prefix + "_" + taskID }

func caseFlag(ctx ExecutionContext, key string) bool {
	v, _ := ctx.Case.Data[key].(bool)
	return v
}

func setCaseFlag(ctx ExecutionContext, key string, v bool) {
	ctx.Case.Data[key] = v
}

// sequenceExecutor implements pattern 1: enable the single successor.
type sequenceExecutor struct{}

func (sequenceExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	if len(arcs) == 0 {
		return ExecutionResult{TaskCompleted: true}, nil
	}
	return ExecutionResult{EnabledArcs: []string{arcs[0].ID}, TaskCompleted: true}, nil
}

// andSplitExecutor implements pattern 2: enable all successors, one token
// per outgoing arc.
type andSplitExecutor struct{}

func (andSplitExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(arcs))
	for i, a := range arcs {
		ids[i] = a.ID
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// andJoinExecutor implements pattern 3: fire only when tokens have arrived
// on every incoming arc.
type andJoinExecutor struct{}

func (andJoinExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	in := ctx.Spec.Incoming(ctx.Task.ID)
	arrived := ctx.Case.Arrivals(ctx.Task.ID)
	if len(arrived) < len(in) {
		return ExecutionResult{}, nil // not yet synchronized
	}
	out := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(out))
	for i, a := range out {
		ids[i] = a.ID
	}
	ctx.Case.ClearArrivals(ctx.Task.ID)
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// xorSplitExecutor implements pattern 4: evaluate guards in priority order,
// enable exactly one successor — the first whose guard holds or, when no
// guard holds (or none is declared), the arc to the lowest target task id.
type xorSplitExecutor struct{}

func (xorSplitExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	for _, g := range ctx.Task.Guards {
		ok, err := ctx.Eval.Eval(g.Expression, ctx.Case.Data)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("pattern: xor-split guard %q: %w", g.ArcID, err)
		}
		if ok {
			return ExecutionResult{EnabledArcs: []string{g.ArcID}, TaskCompleted: true}, nil
		}
	}
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	if len(arcs) == 0 {
		return ExecutionResult{TaskCompleted: true}, nil
	}
	return ExecutionResult{EnabledArcs: []string{arcs[0].ID}, TaskCompleted: true}, nil
}

// xorJoinExecutor implements pattern 5: fire on the first arriving token;
// later arrivals are errors.
type xorJoinExecutor struct{}

func (xorJoinExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	key := internalKey("xorjoin", ctx.Task.ID)
	if caseFlag(ctx, key) {
		return ExecutionResult{}, workflow.ErrLateArrival
	}
	setCaseFlag(ctx, key, true)
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(arcs))
	for i, a := range arcs {
		ids[i] = a.ID
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// orSplitExecutor implements pattern 6: evaluate all guards, enable every
// successor whose guard holds (at least one).
type orSplitExecutor struct{}

func (orSplitExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	var enabled []string
	for _, g := range ctx.Task.Guards {
		ok, err := ctx.Eval.Eval(g.Expression, ctx.Case.Data)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("pattern: or-split guard %q: %w", g.ArcID, err)
		}
		if ok {
			enabled = append(enabled, g.ArcID)
		}
	}
	if len(enabled) == 0 {
		arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
		if len(arcs) > 0 {
			enabled = []string{arcs[0].ID}
		}
	}
	return ExecutionResult{EnabledArcs: enabled, TaskCompleted: true}, nil
}

// orJoinExecutor implements pattern 7 (Structured Synchronizing Merge):
// fires when exactly the previously-activated branches have arrived.
// Resolved Open Question 2 (conservative): cancelling any previously
// activated branch cancels the join itself rather than firing on survivors.
type orJoinExecutor struct{}

func (orJoinExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	in := ctx.Spec.Incoming(ctx.Task.ID)
	var activated []string
	for _, a := range in {
		if ctx.Case.ArcActive(a.ID) {
			activated = append(activated, a.ID)
		} else if ctx.Case.TaskState(taskOf(in, a.ID)) == workflow.TaskCancelled {
			cs := workflow.CaseCancelled
			return ExecutionResult{CaseTransition: &cs}, nil
		}
	}
	arrived := ctx.Case.Arrivals(ctx.Task.ID)
	if len(arrived) < len(activated) {
		return ExecutionResult{}, nil
	}
	out := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(out))
	for i, a := range out {
		ids[i] = a.ID
	}
	ctx.Case.ClearArrivals(ctx.Task.ID)
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

func taskOf(arcs []*workflow.Arc, arcID string) string {
	for _, a := range arcs {
		if a.ID == arcID {
			return a.From
		}
	}
	return ""
}

// multiMergeExecutor implements pattern 8: fire once per arrival, no
// synchronization.
type multiMergeExecutor struct{}

func (multiMergeExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(arcs))
	for i, a := range arcs {
		ids[i] = a.ID
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// discriminatorExecutor implements pattern 9: fire on first arrival, block
// subsequent arrivals until ResetDiscriminator is called.
type discriminatorExecutor struct{ blocking, cancelling bool }

func (d discriminatorExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	key := internalKey("disc", ctx.Task.ID)
	if caseFlag(ctx, key) {
		if d.cancelling {
			return ExecutionResult{Cancellations: []string{ctx.ArrivedFrom}}, nil
		}
		if d.blocking {
			return ExecutionResult{}, nil
		}
		return ExecutionResult{}, nil
	}
	setCaseFlag(ctx, key, true)
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(arcs))
	for i, a := range arcs {
		ids[i] = a.ID
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// ResetDiscriminator clears a discriminator's fired flag, allowing it to
// fire again on the next round of arrivals.
func ResetDiscriminator(c *workflow.Case, taskID string) {
	c.Data[internalKey("disc", taskID)] = false
}

// loopExecutor implements patterns 10 (Arbitrary Cycles) and 28 (Structured
// Loop): loop with a runtime-evaluated exit guard, bounded by max_iterations.
type loopExecutor struct{}

func (loopExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	key := internalKey("iter", ctx.Task.ID)
	count, _ := ctx.Case.Data[key].(int)
	count++
	if count > maxIterations(ctx) {
		cs := workflow.CaseFailed
		return ExecutionResult{CaseTransition: &cs, Err: ErrBoundsExceeded}, ErrBoundsExceeded
	}
	ctx.Case.Data[key] = count

	exit := false
	if len(ctx.Task.Guards) > 0 {
		ok, err := ctx.Eval.Eval(ctx.Task.Guards[0].Expression, ctx.Case.Data)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("pattern: loop exit guard: %w", err)
		}
		exit = ok
	}

	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	var chosen []string
	for _, a := range arcs {
		if exit != a.Loop {
			chosen = append(chosen, a.ID)
		}
	}
	if len(chosen) == 0 && len(arcs) > 0 {
		chosen = []string{arcs[0].ID}
	}
	return ExecutionResult{EnabledArcs: chosen, TaskCompleted: true}, nil
}

// recursionExecutor implements pattern 29: sub-case invocation bounded by
// max_depth.
type recursionExecutor struct{}

func (recursionExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	if ctx.CurrentDepth >= maxDepth(ctx) {
		cs := workflow.CaseFailed
		return ExecutionResult{CaseTransition: &cs, Err: ErrBoundsExceeded}, ErrBoundsExceeded
	}
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(arcs))
	for i, a := range arcs {
		ids[i] = a.ID
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// implicitTerminationExecutor implements pattern 11 for a task declared with
// it: the case completes when the task is reached. The case executor's own
// empty-scan termination (caseexec's checkImplicitTermination) does not call
// it.
type implicitTerminationExecutor struct{}

func (implicitTerminationExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	cs := workflow.CaseCompleted
	return ExecutionResult{CaseTransition: &cs, TaskCompleted: true}, nil
}

// multiInstanceExecutor implements patterns 12-15 and their cancellation
// variants 21-25: it enables every outgoing arc N times, where N is the int
// stored in case data under internalKey("micount", task id) (default 1), and
// completes the task in the same step. The noSync and cancellable flags do
// not change the result: no variant waits for its instances to finish, and N
// is not resolved separately at design time or per arrival.
type multiInstanceExecutor struct {
	noSync      bool
	cancellable bool
}

func (m multiInstanceExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	n := 1
	if raw, ok := ctx.Case.Data[internalKey("micount", ctx.Task.ID)]; ok {
		if v, ok := raw.(int); ok && v > 0 {
			n = v
		}
	}
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	var ids []string
	for i := 0; i < n; i++ {
		for _, a := range arcs {
			ids = append(ids, a.ID)
		}
	}
	if m.noSync {
		return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// deferredChoiceExecutor implements pattern 16: pause; successor is chosen
// by an externally delivered event via the timer/event service.
type deferredChoiceExecutor struct{}

func (deferredChoiceExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	if ctx.Timer == nil {
		return ExecutionResult{Suspend: true}, nil
	}
	token := ctx.Timer.AwaitEvent(ctx.CaseID, ctx.Task.ID)
	if token == "" {
		return ExecutionResult{Suspend: true}, nil
	}
	for _, a := range ctx.Spec.Outgoing(ctx.Task.ID) {
		if a.ID == token {
			return ExecutionResult{EnabledArcs: []string{a.ID}, TaskCompleted: true}, nil
		}
	}
	return ExecutionResult{Suspend: true}, nil
}

// interleavedRoutingExecutor implements pattern 17: execute a set
// concurrently but at most one at a time (a mutex flag over the set held in
// case data).
type interleavedRoutingExecutor struct{}

func (interleavedRoutingExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	key := internalKey("mutex", ctx.Task.CancelRegion)
	if caseFlag(ctx, key) {
		return ExecutionResult{Suspend: true}, nil
	}
	setCaseFlag(ctx, key, true)
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	if len(arcs) == 0 {
		return ExecutionResult{TaskCompleted: true}, nil
	}
	return ExecutionResult{EnabledArcs: []string{arcs[0].ID}, TaskCompleted: true}, nil
}

// milestoneExecutor implements pattern 18: guard succeeds iff another task
// is in a specified state.
type milestoneExecutor struct{}

func (milestoneExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	if len(ctx.Task.Guards) == 0 {
		return ExecutionResult{Suspend: true}, nil
	}
	ok, err := ctx.Eval.Eval(ctx.Task.Guards[0].Expression, ctx.Case.Data)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("pattern: milestone guard: %w", err)
	}
	if !ok {
		return ExecutionResult{Suspend: true}, nil
	}
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	ids := make([]string, len(arcs))
	for i, a := range arcs {
		ids[i] = a.ID
	}
	return ExecutionResult{EnabledArcs: ids, TaskCompleted: true}, nil
}

// cancelActivityExecutor implements pattern 19: revoke a single task; its
// tokens are removed.
type cancelActivityExecutor struct{}

func (cancelActivityExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	return ExecutionResult{Cancellations: []string{ctx.Task.ID}, TaskCompleted: true}, nil
}

// cancelCaseExecutor implements pattern 20: terminate the whole case; the ids
// of the other tasks in the task's cancel region are returned in
// Cancellations as its compensations.
type cancelCaseExecutor struct{}

func (cancelCaseExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	var compensations []string
	region := ctx.Task.CancelRegion
	if region != "" {
		for _, t := range ctx.Spec.Tasks {
			if t.CancelRegion == region && t.ID != ctx.Task.ID {
				compensations = append(compensations, t.ID)
			}
		}
	}
	cs := workflow.CaseCancelled
	return ExecutionResult{CaseTransition: &cs, Cancellations: compensations, TaskCompleted: true}, nil
}

// transientTriggerExecutor implements pattern 30: one-shot external signal,
// discarded if no task is listening.
type transientTriggerExecutor struct{}

func (transientTriggerExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	if ctx.Timer == nil {
		return ExecutionResult{TaskCompleted: true}, nil
	}
	token := ctx.Timer.AwaitEvent(ctx.CaseID, ctx.Task.ID)
	if token == "" {
		return ExecutionResult{TaskCompleted: true}, nil // discarded, nobody listening
	}
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	if len(arcs) == 0 {
		return ExecutionResult{TaskCompleted: true}, nil
	}
	return ExecutionResult{EnabledArcs: []string{arcs[0].ID}, TaskCompleted: true}, nil
}

// persistentTriggerExecutor implements pattern 31: signal enqueued until
// consumed.
type persistentTriggerExecutor struct{}

func (persistentTriggerExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	key := internalKey("trigger", ctx.Task.ID)
	if !caseFlag(ctx, key) {
		if ctx.Timer == nil {
			return ExecutionResult{Suspend: true}, nil
		}
		token := ctx.Timer.AwaitEvent(ctx.CaseID, ctx.Task.ID)
		if token == "" {
			return ExecutionResult{Suspend: true}, nil
		}
		setCaseFlag(ctx, key, true)
	}
	arcs := sortedArcs(ctx.Spec, ctx.Task.ID)
	if len(arcs) == 0 {
		return ExecutionResult{TaskCompleted: true}, nil
	}
	return ExecutionResult{EnabledArcs: []string{arcs[0].ID}, TaskCompleted: true}, nil
}

// stateBasedExecutor implements the patterns 32-39 "state-based and complex
// sync" cluster: each behaves as a milestone-gated sequence, the common
// shape the standard taxonomy gives this cluster.
type stateBasedExecutor struct{}

func (stateBasedExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	return milestoneExecutor{}.Execute(ctx)
}

// triggerCompositionExecutor implements patterns 40-43: external, event,
// multiple, and cancel-trigger compositions, each a thin variation on the
// transient/persistent trigger pair plus an optional cancellation.
type triggerCompositionExecutor struct{ persistent, cancels bool }

func (t triggerCompositionExecutor) Execute(ctx ExecutionContext) (ExecutionResult, error) {
	var res ExecutionResult
	var err error
	if t.persistent {
		res, err = persistentTriggerExecutor{}.Execute(ctx)
	} else {
		res, err = transientTriggerExecutor{}.Execute(ctx)
	}
	if err != nil || !t.cancels || len(res.EnabledArcs) == 0 {
		return res, err
	}
	res.Cancellations = append(res.Cancellations, ctx.Task.CancelRegion)
	return res, nil
}

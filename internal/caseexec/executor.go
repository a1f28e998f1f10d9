// Package caseexec implements the Case Executor (C7): the main loop that
// drives a single Case through its WorkflowSpec by repeatedly finding
// enabled tasks, dispatching them through the Pattern Registry (C3), and
// folding the resulting per-step receipts (C6). Grounded on the teacher's
// DAGExecutor wave-based parallelism (internal/application/engine), adapted
// from node/edge waves to enabled-task/arc token flow.
package caseexec

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/smilemakc/wfkernel/internal/kernel"
	"github.com/smilemakc/wfkernel/internal/pattern"
	"github.com/smilemakc/wfkernel/internal/receipt"
	"github.com/smilemakc/wfkernel/internal/workflow"
)

// StepOutcome summarizes one Step call: which tasks fired, whether the case
// reached a terminal state, and the receipt fold for the step.
type StepOutcome struct {
	FiredTasks []string
	Terminal   bool
	Fold       receipt.Fold
}

// Executor drives cases through a Spec using the pattern Registry.
type Executor struct {
	registry *pattern.Registry
	eval     pattern.GuardEvaluator
	timer    pattern.TimerService

	maxParallel int64

	defaultMaxIterations int
	defaultMaxDepth      int

	tickBudget uint32

	composersMu sync.Mutex
	composers   map[string]*receipt.DeltaComposer // keyed by case id
	hasher      *receipt.ReceiptHasher
}

// Config tunes the executor's concurrency and pattern defaults.
type Config struct {
	MaxParallel          int64
	DefaultMaxIterations int
	DefaultMaxDepth      int
	FoldBlockLen         int
	HashSeed             uint64
	// TickBudget is the per-step R1 tick budget a fold's root must stay
	// within to avoid being marked Degraded (spec.md §12). Defaults to
	// kernel.ChatmanConstant.
	TickBudget uint32
}

// DefaultConfig mirrors spec.md §4.2's stated defaults.
func DefaultConfig() Config {
	return Config{MaxParallel: 16, DefaultMaxIterations: 1000, DefaultMaxDepth: 100, FoldBlockLen: 64, TickBudget: kernel.ChatmanConstant}
}

// New creates an Executor. eval resolves XOR/OR-split guards; timer services
// deferred-choice and trigger patterns; both are normally backed by the
// scheduler (C4).
func New(registry *pattern.Registry, eval pattern.GuardEvaluator, timer pattern.TimerService, cfg Config) *Executor {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 16
	}
	if cfg.FoldBlockLen <= 0 {
		cfg.FoldBlockLen = 64
	}
	if cfg.TickBudget == 0 {
		cfg.TickBudget = kernel.ChatmanConstant
	}
	return &Executor{
		registry:             registry,
		eval:                 eval,
		timer:                timer,
		maxParallel:          cfg.MaxParallel,
		defaultMaxIterations: cfg.DefaultMaxIterations,
		defaultMaxDepth:      cfg.DefaultMaxDepth,
		tickBudget:           cfg.TickBudget,
		composers:            make(map[string]*receipt.DeltaComposer),
		hasher:               receipt.NewReceiptHasher(cfg.HashSeed),
	}
}

func (e *Executor) composerFor(caseID string, blockLen int) *receipt.DeltaComposer {
	e.composersMu.Lock()
	defer e.composersMu.Unlock()
	c, ok := e.composers[caseID]
	if !ok {
		c = receipt.NewDeltaComposer(blockLen)
		e.composers[caseID] = c
	}
	return c
}

// enabledTasks returns the tasks that are ready to fire this step: their
// split/join executor applies regardless of overall arc activity (a join
// executor itself decides whether it has synchronized); a task is a
// candidate whenever at least one of its incoming arcs is active, or it is
// the Spec's start task on the case's very first step.
func (e *Executor) enabledTasks(spec *workflow.Spec, c *workflow.Case) []*workflow.Task {
	seen := make(map[string]bool)
	var out []*workflow.Task

	consider := func(taskID string) {
		if seen[taskID] {
			return
		}
		if c.TaskState(taskID) == workflow.TaskCompleted {
			return
		}
		t, ok := spec.Task(taskID)
		if !ok {
			return
		}
		seen[taskID] = true
		out = append(out, t)
	}

	if c.TaskState(spec.Start) == workflow.TaskEnabled {
		consider(spec.Start)
	}
	for _, arc := range spec.Arcs {
		if c.ArcActive(arc.ID) {
			consider(arc.To)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Step finds every task currently enabled for c and dispatches each through
// its pattern executor, in parallel bounded by maxParallel (one wave, mirrors
// the teacher's executeWave). It returns once the wave completes; callers
// typically loop Step until StepOutcome.Terminal or no tasks fired (implicit
// termination, pattern 11).
func (e *Executor) Step(ctx context.Context, spec *workflow.Spec, c *workflow.Case) (StepOutcome, error) {
	tasks := e.enabledTasks(spec, c)
	if len(tasks) == 0 {
		return e.checkImplicitTermination(spec, c)
	}

	sem := semaphore.NewWeighted(e.maxParallel)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fired []string
	var stepErr error
	composer := e.composerFor(c.ID, 64)

	for _, t := range tasks {
		t := t
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if stepErr == nil {
				stepErr = err
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			res, r, err := e.executeTask(spec, c, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if stepErr == nil {
					stepErr = fmt.Errorf("caseexec: task %s: %w", t.ID, err)
				}
				return
			}
			if res.TaskCompleted || len(res.EnabledArcs) > 0 {
				fired = append(fired, t.ID)
			}
			composer.ComposeDelta(receipt.Delta{Receipt: r})
			if res.CaseTransition != nil {
				_ = c.Transition(*res.CaseTransition)
			}
		}()
	}
	wg.Wait()

	if stepErr != nil {
		return StepOutcome{}, stepErr
	}

	sort.Strings(fired)
	fold := composer.TakeFold(e.tickBudget, e.hasher)
	return StepOutcome{FiredTasks: fired, Terminal: c.IsTerminal(), Fold: fold}, nil
}

func (e *Executor) executeTask(spec *workflow.Spec, c *workflow.Case, t *workflow.Task) (pattern.ExecutionResult, receipt.Receipt, error) {
	exec, err := e.registry.Get(t.PatternID)
	if err != nil {
		return pattern.ExecutionResult{}, receipt.Receipt{}, err
	}

	execCtx := pattern.ExecutionContext{
		CaseID:               c.ID,
		WorkflowID:           spec.ID,
		Case:                 c,
		Spec:                 spec,
		Task:                 t,
		Eval:                 e.eval,
		Timer:                e.timer,
		DefaultMaxIterations: e.defaultMaxIterations,
		DefaultMaxDepth:      e.defaultMaxDepth,
	}

	res, err := exec.Execute(execCtx)
	if err != nil {
		return res, receipt.Receipt{}, err
	}

	for _, arcID := range res.EnabledArcs {
		c.ActivateArc(arcID)
		if arc := findArc(spec, arcID); arc != nil {
			c.RecordArrival(arc.To, t.ID)
		}
	}
	if res.TaskCompleted {
		c.SetTaskState(t.ID, workflow.TaskCompleted)
	}
	for _, arcID := range res.Cancellations {
		c.DeactivateArc(arcID)
	}

	r := receipt.Receipt{
		Ticks: 1,
		Lanes: 1,
		Hash:  receipt.ContentHash(uint8(t.PatternID), 0, 0, 0, 0),
	}
	return res, r, nil
}

func findArc(spec *workflow.Spec, arcID string) *workflow.Arc {
	for _, a := range spec.Arcs {
		if a.ID == arcID {
			return a
		}
	}
	return nil
}

// checkImplicitTermination applies pattern 11: when no task is enabled and
// no arc carries an in-transit token, the case completes.
func (e *Executor) checkImplicitTermination(spec *workflow.Spec, c *workflow.Case) (StepOutcome, error) {
	for _, arc := range spec.Arcs {
		if c.ArcActive(arc.ID) {
			return StepOutcome{}, nil
		}
	}
	for _, end := range spec.Ends {
		if c.TaskState(end) == workflow.TaskCompleted {
			_ = c.Transition(workflow.CaseCompleted)
			return StepOutcome{Terminal: true}, nil
		}
	}
	if !c.IsTerminal() {
		_ = c.Transition(workflow.CaseCompleted)
	}
	return StepOutcome{Terminal: true}, nil
}

// Run drives c to completion by repeatedly stepping until terminal or no
// further progress is made (a stall, reported as an error so callers can
// distinguish it from a clean implicit termination).
func (e *Executor) Run(ctx context.Context, spec *workflow.Spec, c *workflow.Case) (receipt.Fold, error) {
	var last receipt.Fold
	for !c.IsTerminal() {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		default:
		}
		out, err := e.Step(ctx, spec, c)
		if err != nil {
			return last, err
		}
		last = out.Fold
		if out.Terminal {
			break
		}
		if len(out.FiredTasks) == 0 {
			return last, fmt.Errorf("caseexec: case %s stalled with no enabled tasks and non-terminal state", c.ID)
		}
	}
	return last, nil
}

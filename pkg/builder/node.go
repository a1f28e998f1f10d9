// Package builder provides a fluent API for constructing WorkflowSpec
// graphs without hand-assembling workflow.Task/Arc literals. Modeled on the
// teacher's functional-options node/edge builders.
package builder

import (
	"fmt"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// TaskBuilder builds a single workflow.Task.
type TaskBuilder struct {
	id        string
	split     workflow.SplitKind
	join      workflow.JoinKind
	patternID int
	guards    []workflow.Guard
	cancelReg string
	maxIter   int
	err       error
}

// TaskOption configures a TaskBuilder.
type TaskOption func(*TaskBuilder) error

// NewTask creates a task builder for id, executed by the pattern executor
// patternID. Defaults to AND-split/AND-join (pattern 1/2/3 territory);
// override with WithSplit/WithJoin for XOR/OR control.
func NewTask(id string, patternID int, opts ...TaskOption) *TaskBuilder {
	tb := &TaskBuilder{id: id, patternID: patternID}
	for _, opt := range opts {
		if err := opt(tb); err != nil {
			tb.err = err
			return tb
		}
	}
	return tb
}

// Build constructs the final Task.
func (tb *TaskBuilder) Build() (*workflow.Task, error) {
	if tb.err != nil {
		return nil, tb.err
	}
	if tb.id == "" {
		return nil, fmt.Errorf("builder: task id cannot be empty")
	}
	return &workflow.Task{
		ID:            tb.id,
		Split:         tb.split,
		Join:          tb.join,
		PatternID:     tb.patternID,
		Guards:        tb.guards,
		CancelRegion:  tb.cancelReg,
		MaxIterations: tb.maxIter,
	}, nil
}

// WithSplit sets the task's split discipline (AND/XOR/OR).
func WithSplit(k workflow.SplitKind) TaskOption {
	return func(tb *TaskBuilder) error {
		tb.split = k
		return nil
	}
}

// WithJoin sets the task's join discipline (AND/XOR/OR).
func WithJoin(k workflow.JoinKind) TaskOption {
	return func(tb *TaskBuilder) error {
		tb.join = k
		return nil
	}
}

// WithGuard adds an XOR/OR-split guard, evaluated in declaration order.
func WithGuard(arcID, expression string) TaskOption {
	return func(tb *TaskBuilder) error {
		if arcID == "" {
			return fmt.Errorf("builder: guard arc id cannot be empty")
		}
		tb.guards = append(tb.guards, workflow.Guard{ArcID: arcID, Expression: expression})
		return nil
	}
}

// WithCancelRegion marks the task as belonging to a named cancellation
// region (patterns 19/20).
func WithCancelRegion(region string) TaskOption {
	return func(tb *TaskBuilder) error {
		tb.cancelReg = region
		return nil
	}
}

// WithMaxIterations overrides the per-case default loop bound
// (patterns 10/28).
func WithMaxIterations(n int) TaskOption {
	return func(tb *TaskBuilder) error {
		if n < 0 {
			return fmt.Errorf("builder: max iterations cannot be negative")
		}
		tb.maxIter = n
		return nil
	}
}

package builder

import (
	"fmt"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// SpecBuilder assembles a complete workflow.Spec from tasks and arcs,
// indexing and validating it (invariant W1) on Build.
type SpecBuilder struct {
	id    string
	start string
	ends  []string
	tasks []*workflow.Task
	arcs  []*workflow.Arc
	err   error
}

// NewSpec creates a spec builder with the given id and start task.
func NewSpec(id, start string) *SpecBuilder {
	return &SpecBuilder{id: id, start: start}
}

// AddTask appends a task built by a TaskBuilder.
func (sb *SpecBuilder) AddTask(tb *TaskBuilder) *SpecBuilder {
	t, err := tb.Build()
	if err != nil {
		sb.err = fmt.Errorf("builder: %w", err)
		return sb
	}
	sb.tasks = append(sb.tasks, t)
	return sb
}

// AddArc appends an arc built by an ArcBuilder.
func (sb *SpecBuilder) AddArc(ab *ArcBuilder) *SpecBuilder {
	a, err := ab.Build()
	if err != nil {
		sb.err = fmt.Errorf("builder: %w", err)
		return sb
	}
	sb.arcs = append(sb.arcs, a)
	return sb
}

// WithEnd marks a task id as a valid end condition for implicit termination
// (pattern 11).
func (sb *SpecBuilder) WithEnd(taskID string) *SpecBuilder {
	sb.ends = append(sb.ends, taskID)
	return sb
}

// Build indexes and validates the assembled Spec, returning it only if
// invariant W1 (closed split/join permutation table) holds for every task.
func (sb *SpecBuilder) Build() (*workflow.Spec, error) {
	if sb.err != nil {
		return nil, sb.err
	}
	if sb.id == "" {
		return nil, fmt.Errorf("builder: spec id cannot be empty")
	}
	if sb.start == "" {
		return nil, fmt.Errorf("builder: spec start task cannot be empty")
	}
	spec := &workflow.Spec{
		ID:    sb.id,
		Start: sb.start,
		Ends:  sb.ends,
		Tasks: sb.tasks,
		Arcs:  sb.arcs,
	}
	if err := spec.Index(); err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	return spec, nil
}

// MustBuild is like Build but panics on error — convenient for constructing
// fixture specs in tests.
func (sb *SpecBuilder) MustBuild() *workflow.Spec {
	spec, err := sb.Build()
	if err != nil {
		panic(err)
	}
	return spec
}

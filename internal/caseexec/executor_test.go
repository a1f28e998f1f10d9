package caseexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/wfkernel/internal/pattern"
	"github.com/smilemakc/wfkernel/internal/workflow"
)

func sequenceSpec(t *testing.T) *workflow.Spec {
	t.Helper()
	s := &workflow.Spec{
		ID:    "spec",
		Start: "t1",
		Ends:  []string{"t2"},
		Tasks: []*workflow.Task{
			{ID: "t1", PatternID: 1, Split: workflow.KindAND, Join: workflow.JoinAND},
			{ID: "t2", PatternID: 11, Split: workflow.KindAND, Join: workflow.JoinAND},
		},
		Arcs: []*workflow.Arc{{ID: "t1-t2", From: "t1", To: "t2"}},
	}
	require.NoError(t, s.Index())
	return s
}

func TestExecutor_StepFiresStartTaskThenAdvances(t *testing.T) {
	e := New(pattern.NewRegistry(), nil, nil, DefaultConfig())
	spec := sequenceSpec(t)
	c := workflow.NewCase("c1", spec.ID, nil)

	out, err := e.Step(context.Background(), spec, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, out.FiredTasks)
	assert.False(t, out.Terminal)

	out, err = e.Step(context.Background(), spec, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, out.FiredTasks)
	assert.True(t, out.Terminal)
	assert.True(t, c.IsTerminal())
}

func TestExecutor_RunDrivesCaseToCompletion(t *testing.T) {
	e := New(pattern.NewRegistry(), nil, nil, DefaultConfig())
	spec := sequenceSpec(t)
	c := workflow.NewCase("c1", spec.ID, nil)

	_, err := e.Run(context.Background(), spec, c)
	require.NoError(t, err)
	assert.Equal(t, workflow.CaseCompleted, c.State)
}

func TestExecutor_RunReportsStallWhenNoTaskProgresses(t *testing.T) {
	spec := &workflow.Spec{
		ID:    "spec",
		Start: "t1",
		Tasks: []*workflow.Task{
			// Pattern 16 (deferred choice) suspends forever without a timer.
			{ID: "t1", PatternID: 16, Split: workflow.KindXOR, Join: workflow.JoinXOR},
		},
	}
	require.NoError(t, spec.Index())
	c := workflow.NewCase("c1", spec.ID, nil)

	e := New(pattern.NewRegistry(), nil, nil, DefaultConfig())
	_, err := e.Run(context.Background(), spec, c)
	assert.Error(t, err)
	assert.False(t, c.IsTerminal())
}

func TestExecutor_StepFoldNotDegradedWithinChatmanConstantBudget(t *testing.T) {
	e := New(pattern.NewRegistry(), nil, nil, DefaultConfig())
	spec := sequenceSpec(t)
	c := workflow.NewCase("c1", spec.ID, nil)

	out, err := e.Step(context.Background(), spec, c)
	require.NoError(t, err)
	assert.False(t, out.Fold.Degraded, "a single Ticks:1 receipt must not exceed the default ChatmanConstant budget")
}

func TestExecutor_StepImplicitlyTerminatesWhenNothingEnabled(t *testing.T) {
	spec := &workflow.Spec{
		ID:    "spec",
		Start: "t1",
		Ends:  []string{"t1"},
		Tasks: []*workflow.Task{
			{ID: "t1", PatternID: 1, Split: workflow.KindAND, Join: workflow.JoinAND},
		},
	}
	require.NoError(t, spec.Index())
	c := workflow.NewCase("c1", spec.ID, nil)
	c.SetTaskState("t1", workflow.TaskCompleted)

	e := New(pattern.NewRegistry(), nil, nil, DefaultConfig())
	out, err := e.Step(context.Background(), spec, c)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, workflow.CaseCompleted, c.State)
}

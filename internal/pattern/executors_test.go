package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

// fakeEval evaluates guards by looking the expression up as a key into a
// fixed bool table, so tests don't need a real expr-lang compiler.
type fakeEval map[string]bool

func (f fakeEval) Eval(expression string, _ map[string]any) (bool, error) {
	return f[expression], nil
}

type fakeTimer map[string]string // "caseID/taskID" -> arc token

func (f fakeTimer) AwaitEvent(caseID, taskID string) string {
	return f[caseID+"/"+taskID]
}

func splitSpec(t *testing.T, split workflow.SplitKind, join workflow.JoinKind, nArcs int) *workflow.Spec {
	t.Helper()
	s := &workflow.Spec{
		ID:    "spec",
		Start: "a",
		Tasks: []*workflow.Task{{ID: "a", Split: split, Join: workflow.JoinAND}},
	}
	for i := 0; i < nArcs; i++ {
		to := string(rune('b' + i))
		s.Tasks = append(s.Tasks, &workflow.Task{ID: to, Split: workflow.KindAND, Join: join})
		s.Arcs = append(s.Arcs, &workflow.Arc{ID: "a-" + to, From: "a", To: to})
	}
	require.NoError(t, s.Index())
	return s
}

func TestSequenceExecutor_EnablesSingleSuccessor(t *testing.T) {
	s := splitSpec(t, workflow.KindAND, workflow.JoinAND, 1)
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0]}

	res, err := sequenceExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b"}, res.EnabledArcs)
	assert.True(t, res.TaskCompleted)
}

func TestAndSplitExecutor_EnablesAllSuccessors(t *testing.T) {
	s := splitSpec(t, workflow.KindAND, workflow.JoinAND, 3)
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0]}

	res, err := andSplitExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a-b", "a-c", "a-d"}, res.EnabledArcs)
}

func TestAndJoinExecutor_WaitsForAllIncomingArcs(t *testing.T) {
	s := &workflow.Spec{
		ID:    "spec",
		Start: "a",
		Tasks: []*workflow.Task{
			{ID: "a", Split: workflow.KindAND, Join: workflow.JoinAND},
			{ID: "b", Split: workflow.KindAND, Join: workflow.JoinAND},
			{ID: "j", Split: workflow.KindAND, Join: workflow.JoinAND},
		},
		Arcs: []*workflow.Arc{
			{ID: "a-j", From: "a", To: "j"},
			{ID: "b-j", From: "b", To: "j"},
		},
	}
	require.NoError(t, s.Index())
	c := workflow.NewCase("c1", s.ID, nil)
	joinTask, _ := s.Task("j")
	ctx := ExecutionContext{Case: c, Spec: s, Task: joinTask}

	c.RecordArrival("j", "a")
	res, err := andJoinExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.False(t, res.TaskCompleted, "only one of two incoming arcs arrived")

	c.RecordArrival("j", "b")
	res, err = andJoinExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, res.TaskCompleted)
	assert.Empty(t, c.Arrivals("j"), "arrivals must be cleared once the join fires")
}

func TestXorSplitExecutor_EnablesFirstGuardThatHolds(t *testing.T) {
	s := splitSpec(t, workflow.KindXOR, workflow.JoinXOR, 2)
	s.Tasks[0].Guards = []workflow.Guard{
		{ArcID: "a-b", Expression: "cond_b"},
		{ArcID: "a-c", Expression: "cond_c"},
	}
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0], Eval: fakeEval{"cond_c": true}}

	res, err := xorSplitExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-c"}, res.EnabledArcs)
}

func TestXorSplitExecutor_FallsBackToLowestArcWhenNoGuardHolds(t *testing.T) {
	s := splitSpec(t, workflow.KindXOR, workflow.JoinXOR, 2)
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0], Eval: fakeEval{}}

	res, err := xorSplitExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b"}, res.EnabledArcs)
}

func TestXorJoinExecutor_RejectsLateArrival(t *testing.T) {
	s := splitSpec(t, workflow.KindAND, workflow.JoinAND, 1)
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0]}

	_, err := xorJoinExecutor{}.Execute(ctx)
	require.NoError(t, err)

	_, err = xorJoinExecutor{}.Execute(ctx)
	assert.ErrorIs(t, err, workflow.ErrLateArrival)
}

func TestOrSplitExecutor_EnablesEveryArcWhoseGuardHolds(t *testing.T) {
	s := splitSpec(t, workflow.KindOR, workflow.JoinOR, 3)
	s.Tasks[0].Guards = []workflow.Guard{
		{ArcID: "a-b", Expression: "g1"},
		{ArcID: "a-c", Expression: "g2"},
		{ArcID: "a-d", Expression: "g3"},
	}
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0], Eval: fakeEval{"g1": true, "g3": true}}

	res, err := orSplitExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a-b", "a-d"}, res.EnabledArcs)
}

func TestOrJoinExecutor_FiresOnceActivatedBranchesArrive(t *testing.T) {
	s := &workflow.Spec{
		ID: "spec",
		Tasks: []*workflow.Task{
			{ID: "a", Split: workflow.KindOR, Join: workflow.JoinAND},
			{ID: "b", Split: workflow.KindAND, Join: workflow.JoinAND},
			{ID: "j", Split: workflow.KindAND, Join: workflow.JoinOR},
		},
		Arcs: []*workflow.Arc{
			{ID: "a-j", From: "a", To: "j"},
			{ID: "b-j", From: "b", To: "j"},
		},
	}
	require.NoError(t, s.Index())
	c := workflow.NewCase("c1", s.ID, nil)
	joinTask, _ := s.Task("j")
	ctx := ExecutionContext{Case: c, Spec: s, Task: joinTask}

	// Only "a-j" was activated by the OR-split; "b-j" never fired.
	c.ActivateArc("a-j")
	c.RecordArrival("j", "a")

	res, err := orJoinExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, res.TaskCompleted, "join fires once the single activated branch arrives")
}

func TestLoopExecutor_FailsCaseWhenIterationBoundExceeded(t *testing.T) {
	s := splitSpec(t, workflow.KindAND, workflow.JoinAND, 1)
	s.Tasks[0].MaxIterations = 2
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0], Eval: fakeEval{}}

	_, err := loopExecutor{}.Execute(ctx)
	require.NoError(t, err)
	_, err = loopExecutor{}.Execute(ctx)
	require.NoError(t, err)

	res, err := loopExecutor{}.Execute(ctx)
	assert.ErrorIs(t, err, ErrBoundsExceeded)
	require.NotNil(t, res.CaseTransition)
	assert.Equal(t, workflow.CaseFailed, *res.CaseTransition)
}

func TestRecursionExecutor_FailsCaseWhenDepthBoundExceeded(t *testing.T) {
	s := splitSpec(t, workflow.KindAND, workflow.JoinAND, 1)
	c := workflow.NewCase("c1", s.ID, nil)
	ctx := ExecutionContext{Case: c, Spec: s, Task: s.Tasks[0], DefaultMaxDepth: 3, CurrentDepth: 3}

	res, err := recursionExecutor{}.Execute(ctx)
	assert.ErrorIs(t, err, ErrBoundsExceeded)
	require.NotNil(t, res.CaseTransition)
	assert.Equal(t, workflow.CaseFailed, *res.CaseTransition)
}

func TestCancelCaseExecutor_CompensatesCancelRegionPeers(t *testing.T) {
	s := &workflow.Spec{
		Tasks: []*workflow.Task{
			{ID: "a", CancelRegion: "r1"},
			{ID: "b", CancelRegion: "r1"},
			{ID: "c", CancelRegion: "r2"},
		},
	}
	ctx := ExecutionContext{Spec: s, Task: s.Tasks[0]}

	res, err := cancelCaseExecutor{}.Execute(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.CaseTransition)
	assert.Equal(t, workflow.CaseCancelled, *res.CaseTransition)
	assert.Equal(t, []string{"b"}, res.Cancellations)
}

func TestDeferredChoiceExecutor_SuspendsWithoutTimer(t *testing.T) {
	s := splitSpec(t, workflow.KindXOR, workflow.JoinXOR, 1)
	ctx := ExecutionContext{Spec: s, Task: s.Tasks[0]}

	res, err := deferredChoiceExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, res.Suspend)
}

func TestDeferredChoiceExecutor_FiresChosenArcOnEvent(t *testing.T) {
	s := splitSpec(t, workflow.KindXOR, workflow.JoinXOR, 2)
	ctx := ExecutionContext{
		CaseID: "c1", Spec: s, Task: s.Tasks[0],
		Timer: fakeTimer{"c1/a": "a-c"},
	}

	res, err := deferredChoiceExecutor{}.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-c"}, res.EnabledArcs)
}

func TestMaxIterations_FallsBackThroughTaskThenContextThenDefault(t *testing.T) {
	task := &workflow.Task{}
	assert.Equal(t, 1000, maxIterations(ExecutionContext{Task: task}))
	assert.Equal(t, 50, maxIterations(ExecutionContext{Task: task, DefaultMaxIterations: 50}))

	task.MaxIterations = 7
	assert.Equal(t, 7, maxIterations(ExecutionContext{Task: task, DefaultMaxIterations: 50}))
}

func TestMaxDepth_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, 100, maxDepth(ExecutionContext{}))
	assert.Equal(t, 10, maxDepth(ExecutionContext{DefaultMaxDepth: 10}))
}

func TestSortedArcs_OrdersByTargetTaskID(t *testing.T) {
	s := splitSpec(t, workflow.KindAND, workflow.JoinAND, 3)
	// Declared in a-b, a-c, a-d order already; reverse to prove sorting.
	s.Arcs[0], s.Arcs[2] = s.Arcs[2], s.Arcs[0]

	arcs := sortedArcs(s, "a")
	require.Len(t, arcs, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{arcs[0].To, arcs[1].To, arcs[2].To})
}

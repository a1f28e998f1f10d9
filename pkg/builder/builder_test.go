package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/wfkernel/internal/workflow"
)

func TestSpecBuilder_BuildsValidSpec(t *testing.T) {
	spec, err := NewSpec("s1", "t1").
		AddTask(NewTask("t1", 1, WithSplit(workflow.KindAND), WithJoin(workflow.JoinAND))).
		AddTask(NewTask("t2", 11, WithSplit(workflow.KindAND), WithJoin(workflow.JoinAND))).
		AddArc(NewArc("t1", "t2")).
		WithEnd("t2").
		Build()

	require.NoError(t, err)
	assert.Equal(t, "s1", spec.ID)
	arc, ok := spec.Task("t1")
	require.True(t, ok)
	assert.Equal(t, 1, arc.PatternID)
	assert.Equal(t, "arc_t1_t2", spec.Arcs[0].ID)
}

func TestSpecBuilder_BuildRejectsInvalidSplitJoin(t *testing.T) {
	_, err := NewSpec("s1", "t1").
		AddTask(NewTask("t1", 6, WithSplit(workflow.KindOR), WithJoin(workflow.JoinAND))).
		Build()
	assert.Error(t, err)
}

func TestSpecBuilder_BuildRejectsEmptyID(t *testing.T) {
	_, err := NewSpec("", "t1").Build()
	assert.Error(t, err)
}

func TestTaskBuilder_WithGuardRejectsEmptyArcID(t *testing.T) {
	_, err := NewTask("t1", 4, WithGuard("", "x > 1")).Build()
	assert.Error(t, err)
}

func TestTaskBuilder_WithMaxIterationsRejectsNegative(t *testing.T) {
	_, err := NewTask("t1", 10, WithMaxIterations(-1)).Build()
	assert.Error(t, err)
}

func TestArcBuilder_DefaultsIDFromFromTo(t *testing.T) {
	arc, err := NewArc("a", "b").Build()
	require.NoError(t, err)
	assert.Equal(t, "arc_a_b", arc.ID)
}

func TestArcBuilder_WithArcIDOverridesDefault(t *testing.T) {
	arc, err := NewArc("a", "b", WithArcID("custom")).Build()
	require.NoError(t, err)
	assert.Equal(t, "custom", arc.ID)
}

func TestArcBuilder_WithArcIDRejectsEmpty(t *testing.T) {
	_, err := NewArc("a", "b", WithArcID("")).Build()
	assert.Error(t, err)
}

func TestArcBuilder_AsLoopMarksBackEdge(t *testing.T) {
	arc, err := NewArc("a", "b", AsLoop()).Build()
	require.NoError(t, err)
	assert.True(t, arc.Loop)
}

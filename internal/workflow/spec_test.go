package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleSpec() *Spec {
	return &Spec{
		ID:    "spec-1",
		Start: "t1",
		Ends:  []string{"t2"},
		Tasks: []*Task{
			{ID: "t1", Split: KindAND, Join: JoinAND},
			{ID: "t2", Split: KindAND, Join: JoinAND},
		},
		Arcs: []*Arc{
			{ID: "a1", From: "t1", To: "t2"},
		},
	}
}

func TestSpec_IndexBuildsLookupTables(t *testing.T) {
	s := simpleSpec()
	require.NoError(t, s.Index())

	task, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, "t1", task.ID)

	out := s.Outgoing("t1")
	require.Len(t, out, 1)
	assert.Equal(t, "a1", out[0].ID)

	in := s.Incoming("t2")
	require.Len(t, in, 1)
	assert.Equal(t, "a1", in[0].ID)
}

func TestSpec_IndexRejectsDuplicateTaskID(t *testing.T) {
	s := &Spec{
		Tasks: []*Task{
			{ID: "t1", Split: KindAND, Join: JoinAND},
			{ID: "t1", Split: KindAND, Join: JoinAND},
		},
	}
	err := s.Index()
	assert.ErrorContains(t, err, "duplicate task id")
}

func TestSpec_IndexRejectsDanglingArc(t *testing.T) {
	s := &Spec{
		Tasks: []*Task{{ID: "t1", Split: KindAND, Join: JoinAND}},
		Arcs:  []*Arc{{ID: "a1", From: "t1", To: "ghost"}},
	}
	err := s.Index()
	assert.ErrorContains(t, err, "unknown target task")
}

func TestSpec_ValidateClosedSplitJoinTable(t *testing.T) {
	valid := []struct {
		split SplitKind
		join  JoinKind
	}{
		{KindAND, JoinAND},
		{KindXOR, JoinXOR},
		{KindOR, JoinOR},
	}
	for _, v := range valid {
		s := &Spec{Tasks: []*Task{{ID: "t1", Split: v.split, Join: v.join}}}
		assert.NoError(t, s.Validate(), "split=%v join=%v should be valid", v.split, v.join)
	}

	invalid := []struct {
		split SplitKind
		join  JoinKind
	}{
		{KindOR, JoinAND},
		{KindAND, JoinOR},
		{KindXOR, JoinOR},
	}
	for _, v := range invalid {
		s := &Spec{Tasks: []*Task{{ID: "t1", Split: v.split, Join: v.join}}}
		assert.Error(t, s.Validate(), "split=%v join=%v should be invalid", v.split, v.join)
	}
}

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardCache_PutGetEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewGuardCache(2)
	p1, err := c.CompileAndCache("1 == 1", nil)
	require.NoError(t, err)
	_, err = c.CompileAndCache("2 == 2", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	// Touch "1 == 1" so it becomes most-recently-used, then insert a third
	// entry: "2 == 2" should be evicted instead.
	got, ok := c.Get("1 == 1")
	require.True(t, ok)
	assert.Equal(t, p1, got)

	_, err = c.CompileAndCache("3 == 3", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("2 == 2")
	assert.False(t, ok, "least recently used entry should have been evicted")
	_, ok = c.Get("1 == 1")
	assert.True(t, ok)
}

func TestGuardCache_Clear(t *testing.T) {
	c := NewGuardCache(4)
	_, err := c.CompileAndCache("true", nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestEvaluator_EvalEmptyExpressionIsVacuouslyTrue(t *testing.T) {
	e := NewEvaluator(NewGuardCache(4))
	ok, err := e.Eval("", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluator_EvalCompilesAndRunsAgainstVars(t *testing.T) {
	e := NewEvaluator(NewGuardCache(4))
	vars := map[string]any{"amount": 42}

	ok, err := e.Eval("amount > 10", vars)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval("amount > 100", vars)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_EvalReportsCompileError(t *testing.T) {
	e := NewEvaluator(NewGuardCache(4))
	_, err := e.Eval("amount >>> 10", map[string]any{"amount": 1})
	assert.Error(t, err)
}

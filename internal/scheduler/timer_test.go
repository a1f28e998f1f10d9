package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerWheel_ScheduleOnceFiresAndSelfRemoves(t *testing.T) {
	w := NewTimerWheel(4)
	w.Start()
	defer w.Stop()

	require.NoError(t, w.ScheduleOnce("c1", "t1", "a1", "@every 50ms"))

	select {
	case ev := <-w.Events():
		assert.Equal(t, "c1", ev.CaseID)
		assert.Equal(t, "t1", ev.TaskID)
		assert.Equal(t, "a1", ev.ArcID)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire in time")
	}

	// Self-removed: scheduling again under the same key must succeed.
	require.Eventually(t, func() bool {
		return w.ScheduleOnce("c1", "t1", "a1", "@every 1h") == nil
	}, time.Second, 10*time.Millisecond)
}

func TestTimerWheel_ScheduleOnceRejectsDuplicateKey(t *testing.T) {
	w := NewTimerWheel(4)
	require.NoError(t, w.ScheduleOnce("c1", "t1", "a1", "@every 1h"))
	err := w.ScheduleOnce("c1", "t1", "a2", "@every 1h")
	assert.Error(t, err)
}

func TestTimerWheel_CancelRemovesPendingTimer(t *testing.T) {
	w := NewTimerWheel(4)
	require.NoError(t, w.ScheduleOnce("c1", "t1", "a1", "@every 1h"))
	w.Cancel("c1", "t1")

	// Cancelled: scheduling again under the same key must succeed immediately.
	require.NoError(t, w.ScheduleOnce("c1", "t1", "a1", "@every 1h"))
}

func TestTimerAdapter_AwaitEventReturnsTimerKey(t *testing.T) {
	w := NewTimerWheel(4)
	a := NewTimerAdapter(w)

	token := a.AwaitEvent("c1", "t1")
	assert.Equal(t, "c1/t1", token)
}

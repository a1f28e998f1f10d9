package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// TimerEvent is delivered to the dispatcher fiber when a registered pattern
// timer fires (patterns 29-31, 40-43: recursion back-off, transient and
// persistent triggers).
type TimerEvent struct {
	CaseID  string
	TaskID  string
	ArcID   string
}

// TimerWheel is the single timer facility described in §5: "timer fires are
// delivered via an MPSC channel to a dedicated dispatcher fiber." It adapts
// the teacher's cron-based scheduling (internal/application/trigger's former
// cron_scheduler.go) to synthesize pattern-execution contexts instead of
// HTTP webhook deliveries.
type TimerWheel struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID // key: caseID+taskID
	events  chan TimerEvent
}

// NewTimerWheel creates a timer wheel whose event channel has the given
// buffer depth (the MPSC channel feeding the dispatcher fiber).
func NewTimerWheel(bufferDepth int) *TimerWheel {
	if bufferDepth <= 0 {
		bufferDepth = 256
	}
	return &TimerWheel{
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
		events:  make(chan TimerEvent, bufferDepth),
	}
}

// Events returns the MPSC channel the dispatcher fiber reads from.
func (w *TimerWheel) Events() <-chan TimerEvent { return w.events }

// Start begins the underlying cron scheduler goroutine.
func (w *TimerWheel) Start() { w.cron.Start() }

// Stop halts the scheduler and waits for any in-flight job to finish.
func (w *TimerWheel) Stop() { <-w.cron.Stop().Done() }

func timerKey(caseID, taskID string) string { return caseID + "/" + taskID }

// ScheduleOnce registers a one-shot timer (deferred-choice timeout,
// milestone expiry, transient trigger) using a cron spec such as
// "@every 5s". The event is sent on Events() and the entry self-removes
// after firing once.
func (w *TimerWheel) ScheduleOnce(caseID, taskID, arcID, cronSpec string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := timerKey(caseID, taskID)
	if _, exists := w.entries[key]; exists {
		return fmt.Errorf("scheduler: timer already scheduled for %s", key)
	}

	var id cron.EntryID
	id, err := w.cron.AddFunc(cronSpec, func() {
		w.events <- TimerEvent{CaseID: caseID, TaskID: taskID, ArcID: arcID}
		w.mu.Lock()
		w.cron.Remove(id)
		delete(w.entries, key)
		w.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("scheduler: schedule timer: %w", err)
	}
	w.entries[key] = id
	return nil
}

// SchedulePersistent registers a recurring timer (pattern 31/41: persistent
// trigger, fires repeatedly until explicitly cancelled).
func (w *TimerWheel) SchedulePersistent(caseID, taskID, arcID, cronSpec string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := timerKey(caseID, taskID)
	if _, exists := w.entries[key]; exists {
		return fmt.Errorf("scheduler: timer already scheduled for %s", key)
	}

	id, err := w.cron.AddFunc(cronSpec, func() {
		w.events <- TimerEvent{CaseID: caseID, TaskID: taskID, ArcID: arcID}
	})
	if err != nil {
		return fmt.Errorf("scheduler: schedule persistent timer: %w", err)
	}
	w.entries[key] = id
	return nil
}

// Cancel removes a pending or persistent timer (pattern 42/43: trigger
// composition with cancellation).
func (w *TimerWheel) Cancel(caseID, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := timerKey(caseID, taskID)
	if id, ok := w.entries[key]; ok {
		w.cron.Remove(id)
		delete(w.entries, key)
	}
}

// DefaultAwaitSpec is the cron spec ScheduleAwait falls back to when a task
// (16 Deferred Choice) registers no explicit timeout: poll every second.
const DefaultAwaitSpec = "@every 1s"

// TimerAdapter adapts a TimerWheel to pattern.TimerService, giving the
// pattern registry a narrow AwaitEvent surface while the wheel itself keeps
// the richer Schedule/Cancel API for the dispatcher.
type TimerAdapter struct {
	wheel *TimerWheel
}

// NewTimerAdapter wraps wheel for use as a pattern.TimerService.
func NewTimerAdapter(wheel *TimerWheel) *TimerAdapter {
	return &TimerAdapter{wheel: wheel}
}

// AwaitEvent registers a one-shot wait for (caseID, taskID) on the wheel's
// default poll interval and returns the timer key as the pattern's wait
// token; the dispatcher resolves the token against TimerEvent.CaseID/TaskID
// when it drains Events().
func (a *TimerAdapter) AwaitEvent(caseID, taskID string) string {
	_ = a.wheel.ScheduleOnce(caseID, taskID, "", DefaultAwaitSpec)
	return timerKey(caseID, taskID)
}

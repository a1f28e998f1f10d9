package workflow

import (
	"errors"
	"sync"
)

// CaseState is one of the six states a Case's lifecycle FSM may occupy.
type CaseState uint8

const (
	CaseCreated CaseState = iota
	CaseRunning
	CaseSuspended
	CaseCompleted
	CaseCancelled
	CaseFailed
)

func (s CaseState) String() string {
	switch s {
	case CaseCreated:
		return "created"
	case CaseRunning:
		return "running"
	case CaseSuspended:
		return "suspended"
	case CaseCompleted:
		return "completed"
	case CaseCancelled:
		return "cancelled"
	case CaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s CaseState) terminal() bool {
	return s == CaseCompleted || s == CaseCancelled || s == CaseFailed
}

// TaskState mirrors the per-task state a Case tracks.
type TaskState uint8

const (
	TaskEnabled TaskState = iota
	TaskExecuting
	TaskSuspended
	TaskCompleted
	TaskFailed
	TaskCancelled
)

// ErrTerminalState is returned when a caller attempts to transition a Case
// that has already reached a terminal state — invariant C1: no case
// regresses from a terminal state.
var ErrTerminalState = errors.New("workflow: case has already reached a terminal state")

// ErrLateArrival is pattern 5's (Simple Merge) error: a second token arrived
// on an XOR-join after the first already fired.
var ErrLateArrival = errors.New("workflow: late arrival on exclusive join")

// Case is a running instance of a Spec.
type Case struct {
	mu sync.Mutex

	ID       string
	SpecID   string
	State    CaseState
	Data     map[string]any
	GenCount map[string]int // per-arc activation generation counter, for OR-join tie-breaking

	taskState map[string]TaskState
	arcActive map[string]bool
	arrivedAt map[string][]string // task -> predecessor task ids that have fired into it
}

// NewCase creates a Case in the Created state.
func NewCase(id, specID string, data map[string]any) *Case {
	if data == nil {
		data = make(map[string]any)
	}
	return &Case{
		ID:        id,
		SpecID:    specID,
		State:     CaseCreated,
		Data:      data,
		GenCount:  make(map[string]int),
		taskState: make(map[string]TaskState),
		arcActive: make(map[string]bool),
		arrivedAt: make(map[string][]string),
	}
}

// Transition moves the case to to, enforcing invariant C1. It is a no-op
// error, not a panic: callers (pattern executors, the scheduler) are
// expected to check it.
func (c *Case) Transition(to CaseState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State.terminal() {
		return ErrTerminalState
	}
	c.State = to
	return nil
}

// TaskState returns the current state of a task, defaulting to TaskEnabled
// semantics (absent = not yet enabled, treated as zero value) for tasks the
// case has not touched yet.
func (c *Case) TaskState(taskID string) TaskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskState[taskID]
}

// SetTaskState records a task's new state.
func (c *Case) SetTaskState(taskID string, s TaskState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskState[taskID] = s
}

// ActivateArc marks an arc as carrying a token, bumping its generation
// counter (used by OR-join (pattern 7) to disambiguate which activation a
// late token belongs to).
func (c *Case) ActivateArc(arcID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arcActive[arcID] = true
	c.GenCount[arcID]++
	return c.GenCount[arcID]
}

// ArcActive reports whether an arc currently carries a token.
func (c *Case) ArcActive(arcID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arcActive[arcID]
}

// DeactivateArc clears an arc's token (consumed by a join firing, or
// revoked by cancellation).
func (c *Case) DeactivateArc(arcID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arcActive[arcID] = false
}

// RecordArrival appends predecessor "from" to the arrival multiset of task
// "to" and returns the updated multiset — the ctx.arrived_from the pattern
// executors consult for joins.
func (c *Case) RecordArrival(to, from string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arrivedAt[to] = append(c.arrivedAt[to], from)
	out := make([]string, len(c.arrivedAt[to]))
	copy(out, c.arrivedAt[to])
	return out
}

// Arrivals returns a copy of the current arrival multiset for task id.
func (c *Case) Arrivals(taskID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.arrivedAt[taskID]))
	copy(out, c.arrivedAt[taskID])
	return out
}

// ClearArrivals resets the arrival multiset for a task, used after a join
// fires or a discriminator resets.
func (c *Case) ClearArrivals(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.arrivedAt, taskID)
}

// IsTerminal reports whether the case has reached a terminal state.
func (c *Case) IsTerminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.State.terminal()
}

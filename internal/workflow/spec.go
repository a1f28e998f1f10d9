// Package workflow defines the WorkflowSpec data model (§3): a directed
// graph of tasks and arcs with split/join control, and the closed
// permutation table that invariant W1 restricts valid (split, join)
// combinations to.
package workflow

import "fmt"

// SplitKind and JoinKind are the three control types a task's split/join
// pair may take.
type SplitKind uint8
type JoinKind uint8

const (
	KindAND SplitKind = iota
	KindXOR
	KindOR
)

const (
	JoinAND JoinKind = iota
	JoinXOR
	JoinOR
)

// Task is one node of a WorkflowSpec. PatternID selects the C3 executor that
// advances this task's state; Split/Join describe its fan-out/fan-in
// discipline. MaxIterations bounds patterns 10/28 per task (falls back to
// the per-case default of 1000 when zero); pattern 29 is bounded by the
// executor's recursion depth instead.
type Task struct {
	ID            string
	Split         SplitKind
	Join          JoinKind
	PatternID     int
	Guards        []Guard // evaluated in order for XOR/OR splits; priority = index
	CancelRegion  string  // empty if not part of a cancellation region
	MaxIterations int
}

// Guard is a named boolean expression (compiled and cached by the scheduler
// via expr-lang) gating one outgoing arc of an XOR/OR split.
type Guard struct {
	ArcID      string
	Expression string
}

// Arc is a directed edge between two tasks. Loop marks a back-edge eligible
// for pattern 10/28 bounded re-execution.
type Arc struct {
	ID   string
	From string
	To   string
	Loop bool
}

// Spec (WorkflowSpec) is a directed graph (Tasks, Arcs) with a distinguished
// start task and a set of end conditions.
type Spec struct {
	ID    string
	Start string
	Ends  []string
	Tasks []*Task
	Arcs  []*Arc

	tasksByID map[string]*Task
	outByTask map[string][]*Arc
	inByTask  map[string][]*Arc
}

// validSplitJoin is the closed permutation table invariant W1 restricts
// (split, join) combinations to. OR-split + AND-join is explicitly invalid
// per spec.md §3 — a structured OR-join (pattern 7) is required to close an
// OR-split, never an unconditional AND-join.
var validSplitJoin = map[SplitKind]map[JoinKind]bool{
	KindAND: {JoinAND: true, JoinXOR: false, JoinOR: false},
	KindXOR: {JoinAND: false, JoinXOR: true, JoinOR: false},
	KindOR:  {JoinAND: false, JoinXOR: false, JoinOR: true},
}

// Index builds the lookup tables (tasksByID, outByTask, inByTask) used by
// the pattern executors and the case executor's main loop. Call once after
// construction, before the spec is published into a snapshot.
func (s *Spec) Index() error {
	s.tasksByID = make(map[string]*Task, len(s.Tasks))
	for _, t := range s.Tasks {
		if _, dup := s.tasksByID[t.ID]; dup {
			return fmt.Errorf("workflow: duplicate task id %q", t.ID)
		}
		s.tasksByID[t.ID] = t
	}
	s.outByTask = make(map[string][]*Arc)
	s.inByTask = make(map[string][]*Arc)
	for _, a := range s.Arcs {
		if _, ok := s.tasksByID[a.From]; !ok {
			return fmt.Errorf("workflow: arc %q references unknown source task %q", a.ID, a.From)
		}
		if _, ok := s.tasksByID[a.To]; !ok {
			return fmt.Errorf("workflow: arc %q references unknown target task %q", a.ID, a.To)
		}
		s.outByTask[a.From] = append(s.outByTask[a.From], a)
		s.inByTask[a.To] = append(s.inByTask[a.To], a)
	}
	return s.Validate()
}

// Validate checks invariant W1 (closed split/join permutation table) for
// every task.
func (s *Spec) Validate() error {
	for _, t := range s.Tasks {
		joins, ok := validSplitJoin[t.Split]
		if !ok || !joins[t.Join] {
			return fmt.Errorf("workflow: task %q has invalid (split=%v, join=%v) combination", t.ID, t.Split, t.Join)
		}
	}
	return nil
}

// Task returns the task with the given id.
func (s *Spec) Task(id string) (*Task, bool) {
	t, ok := s.tasksByID[id]
	return t, ok
}

// Outgoing returns the arcs leaving task id, in declaration order. Guard
// priority for XOR/OR splits follows Task.Guards, not this order.
func (s *Spec) Outgoing(id string) []*Arc { return s.outByTask[id] }

// Incoming returns the arcs entering task id.
func (s *Spec) Incoming(id string) []*Arc { return s.inByTask[id] }

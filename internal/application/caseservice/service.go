// Package caseservice wires the Admission Gate (C2), Snapshot Store (C1),
// Case Executor (C7), and cold-path persistence together into the single
// entry point the HTTP shell (pkg/server) drives. It is the ambient-server
// analogue of the teacher's engine.ExecutionManager: a thin orchestration
// layer over the core packages, holding no control-flow logic of its own.
package caseservice

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/wfkernel/internal/admission"
	"github.com/smilemakc/wfkernel/internal/caseexec"
	"github.com/smilemakc/wfkernel/internal/domain/repository"
	"github.com/smilemakc/wfkernel/internal/infrastructure/storage/models"
	"github.com/smilemakc/wfkernel/internal/observer"
	"github.com/smilemakc/wfkernel/internal/receipt"
	"github.com/smilemakc/wfkernel/internal/snapshot"
	"github.com/smilemakc/wfkernel/internal/workflow"
)

// runningCase bundles an in-memory Case with the spec and snapshot it was
// admitted against, kept for the lifetime of the process so repeated
// Step/Run calls resume the same FSM instance.
type runningCase struct {
	mu       sync.Mutex
	c        *workflow.Case
	spec     *workflow.Spec
	snapID   snapshot.ID
}

// Service is the case-lifecycle front door: CreateCase admits input and
// starts a Case, Step/Run drive it through the executor, and Get/Folds
// answer queries against both the in-memory FSM and cold storage.
type Service struct {
	store    *snapshot.Store
	gate     *admission.Gate
	executor *caseexec.Executor
	obs      *observer.Manager

	caseRepo repository.CaseRepository
	foldRepo repository.FoldRepository

	mu    sync.RWMutex
	cases map[string]*runningCase
}

// New builds a Service over its collaborators. obs may be nil (no lifecycle
// telemetry fan-out).
func New(store *snapshot.Store, gate *admission.Gate, executor *caseexec.Executor, obs *observer.Manager, caseRepo repository.CaseRepository, foldRepo repository.FoldRepository) *Service {
	return &Service{
		store:    store,
		gate:     gate,
		executor: executor,
		obs:      obs,
		caseRepo: caseRepo,
		foldRepo: foldRepo,
		cases:    make(map[string]*runningCase),
	}
}

// CreateCase admits input against the current snapshot's spec identified by
// specID, then starts a new Case bound to that snapshot.
func (s *Service) CreateCase(ctx context.Context, specID string, input map[string]any, schema admission.Schema) (*workflow.Case, error) {
	desc := s.store.GetCurrent()
	if desc == nil {
		return nil, fmt.Errorf("caseservice: no current snapshot; publish and promote one first")
	}
	snap, err := s.store.Load(desc.SnapshotID)
	if err != nil {
		return nil, err
	}
	spec, ok := findSpec(snap, specID)
	if !ok {
		return nil, fmt.Errorf("caseservice: spec %q not found in current snapshot", specID)
	}

	if err := s.gate.Admit(input, schema, snap); err != nil {
		return nil, err
	}

	caseID := uuid.New()
	c := workflow.NewCase(caseID.String(), specID, input)
	if err := c.Transition(workflow.CaseRunning); err != nil {
		return nil, err
	}

	s.store.BindCase(desc.SnapshotID)
	s.mu.Lock()
	s.cases[c.ID] = &runningCase{c: c, spec: spec, snapID: desc.SnapshotID}
	s.mu.Unlock()

	model := &models.CaseModel{
		ID:         caseID,
		SpecID:     specID,
		SnapshotID: hexID(desc.SnapshotID),
		State:      c.State.String(),
		Data:       models.JSONBMap(input),
	}
	if err := s.caseRepo.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("caseservice: persist case: %w", err)
	}

	s.notify(ctx, observer.Event{
		Type: observer.EventCaseStarted, CaseID: c.ID, SpecID: specID, Timestamp: time.Now(),
	})
	return c, nil
}

// Step advances case id by one executor wave.
func (s *Service) Step(ctx context.Context, caseID string) (caseexec.StepOutcome, error) {
	rc, ok := s.lookup(caseID)
	if !ok {
		return caseexec.StepOutcome{}, fmt.Errorf("caseservice: case %q not found", caseID)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	out, err := s.executor.Step(ctx, rc.spec, rc.c)
	if err != nil {
		s.notify(ctx, observer.Event{Type: observer.EventCaseFailed, CaseID: caseID, Timestamp: time.Now(), Err: err})
		return out, err
	}
	s.persistStep(ctx, caseID, rc, out)
	return out, nil
}

// Run drives case id to completion, one wave at a time.
func (s *Service) Run(ctx context.Context, caseID string) (receipt.Fold, error) {
	rc, ok := s.lookup(caseID)
	if !ok {
		return receipt.Fold{}, fmt.Errorf("caseservice: case %q not found", caseID)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	fold, err := s.executor.Run(ctx, rc.spec, rc.c)
	if err != nil {
		s.notify(ctx, observer.Event{Type: observer.EventCaseFailed, CaseID: caseID, Timestamp: time.Now(), Err: err})
		return fold, err
	}
	s.persistStep(ctx, caseID, rc, caseexec.StepOutcome{Terminal: rc.c.IsTerminal(), Fold: fold})
	return fold, nil
}

// persistStep writes the updated case state and, if the wave produced a
// non-empty fold, a FoldModel row, then fires lifecycle events. Caller must
// hold rc.mu.
func (s *Service) persistStep(ctx context.Context, caseID string, rc *runningCase, out caseexec.StepOutcome) {
	model := &models.CaseModel{
		ID:     mustParseUUID(caseID),
		SpecID: rc.c.SpecID,
		State:  rc.c.State.String(),
		Data:   models.JSONBMap(rc.c.Data),
	}
	if err := s.caseRepo.Update(ctx, model); err != nil {
		s.notify(ctx, observer.Event{Type: observer.EventCaseFailed, CaseID: caseID, Timestamp: time.Now(), Err: err})
	}

	if out.Fold.Count > 0 {
		fm := &models.FoldModel{
			CaseID:    mustParseUUID(caseID),
			RootHash:  out.Fold.RootHash,
			RootTicks: out.Fold.Root.Ticks,
			RootLanes: out.Fold.Root.Lanes,
			Count:     out.Fold.Count,
			FirstTick: out.Fold.FirstTick,
			LastTick:  out.Fold.LastTick,
			Degraded:  out.Fold.Degraded,
		}
		if err := s.foldRepo.Create(ctx, fm); err != nil {
			s.notify(ctx, observer.Event{Type: observer.EventCaseFailed, CaseID: caseID, Timestamp: time.Now(), Err: err})
		}
	}

	for _, taskID := range out.FiredTasks {
		taskID := taskID
		s.notify(ctx, observer.Event{Type: observer.EventTaskFired, CaseID: caseID, Timestamp: time.Now(), TaskID: &taskID})
	}

	if out.Terminal {
		s.store.ReleaseCase(rc.snapID)
		evt := observer.EventCaseCompleted
		switch rc.c.State {
		case workflow.CaseCancelled:
			evt = observer.EventCaseCancelled
		case workflow.CaseFailed:
			evt = observer.EventCaseFailed
		}
		s.notify(ctx, observer.Event{Type: evt, CaseID: caseID, Timestamp: time.Now()})
	}
}

// Get returns the in-memory Case for id, if this process holds it.
func (s *Service) Get(caseID string) (*workflow.Case, bool) {
	rc, ok := s.lookup(caseID)
	if !ok {
		return nil, false
	}
	return rc.c, true
}

// Folds lists the persisted folds recorded for case id, oldest first.
func (s *Service) Folds(ctx context.Context, caseID string) ([]*models.FoldModel, error) {
	return s.foldRepo.FindByCaseID(ctx, mustParseUUID(caseID))
}

func (s *Service) lookup(caseID string) (*runningCase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.cases[caseID]
	return rc, ok
}

func (s *Service) notify(ctx context.Context, evt observer.Event) {
	if s.obs == nil {
		return
	}
	s.obs.Notify(ctx, evt)
}

func findSpec(snap *snapshot.Snapshot, specID string) (*workflow.Spec, bool) {
	for _, spec := range snap.Specs {
		if spec.ID == specID {
			return spec, true
		}
	}
	return nil, false
}

func hexID(id snapshot.ID) string {
	return hex.EncodeToString(id[:])
}

func mustParseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}
	}
	return id
}

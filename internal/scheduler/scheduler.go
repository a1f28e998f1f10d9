package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/smilemakc/wfkernel/internal/kernel"
	"github.com/smilemakc/wfkernel/internal/receipt"
)

// ErrBusy is returned by W1 submission when its bounded queue is full;
// callers may retry later.
var ErrBusy = errors.New("scheduler: w1 queue full")

// ErrCancelled is returned when a warm/cold-path op observes its cancel
// token at a suspension point.
var ErrCancelled = errors.New("scheduler: operation cancelled")

// DowngradeEvent records that an R1 op exceeded its tick budget and the next
// occurrence of that IR shape should be routed to W1 instead.
type DowngradeEvent struct {
	Op    kernel.Op
	Ticks uint32
}

// Config bounds the scheduler's warm-path concurrency and backpressure.
type Config struct {
	W1Workers     int64
	W1QueueDepth  int64
	CancelGrace   time.Duration // default 50ms per §4.4
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{W1Workers: 10, W1QueueDepth: 64, CancelGrace: 50 * time.Millisecond}
}

// Scheduler is the C4 Tick Scheduler.
type Scheduler struct {
	cfg Config

	w1Sem   *semaphore.Weighted
	w1Queue *semaphore.Weighted // admission limiter, separate from worker concurrency

	mu         sync.Mutex
	downgraded map[kernel.Op]bool
	onDowngrade func(DowngradeEvent)
}

// New creates a Scheduler with cfg.
func New(cfg Config) *Scheduler {
	if cfg.W1Workers <= 0 {
		cfg.W1Workers = 10
	}
	if cfg.W1QueueDepth <= 0 {
		cfg.W1QueueDepth = 64
	}
	return &Scheduler{
		cfg:        cfg,
		w1Sem:      semaphore.NewWeighted(cfg.W1Workers),
		w1Queue:    semaphore.NewWeighted(cfg.W1QueueDepth),
		downgraded: make(map[kernel.Op]bool),
	}
}

// OnDowngrade registers a callback invoked whenever an R1 op is downgraded.
func (s *Scheduler) OnDowngrade(fn func(DowngradeEvent)) { s.onDowngrade = fn }

// IsDowngraded reports whether op's next occurrence should skip R1 and go
// straight to W1.
func (s *Scheduler) IsDowngraded(op kernel.Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downgraded[op]
}

// RunHot dispatches ir through the hot-path kernel inline (R1 never
// queues). If the measured ticks exceed the Chatman Constant, the result is
// still returned (§9 OQ3: soft alarm, never abort) and the op is flagged for
// downgrade on its next occurrence.
func (s *Scheduler) RunHot(ctx *kernel.Ctx, ir kernel.IR, spanID uint64) (bool, receipt.Receipt) {
	result, r := ctx.EvalBool(ir, spanID)
	if r.Ticks > kernel.ChatmanConstant {
		s.mu.Lock()
		s.downgraded[ir.Op] = true
		s.mu.Unlock()
		if s.onDowngrade != nil {
			s.onDowngrade(DowngradeEvent{Op: ir.Op, Ticks: r.Ticks})
		}
	}
	return result, r
}

// WarmOp is a unit of work submitted to the W1 tier: it must observe cancel
// at well-defined suspension points and return ErrCancelled within the
// scheduler's grace period.
type WarmOp func(ctx context.Context) (any, error)

// SubmitWarm admits a warm-path op. If the bounded queue is full it returns
// ErrBusy immediately (non-blocking admission, per §5 backpressure). Once
// admitted, the op runs under a context bounded by the W1 wall-clock budget
// (500ms) and the scheduler's cancel grace period.
func (s *Scheduler) SubmitWarm(ctx context.Context, op WarmOp) (any, error) {
	if !s.w1Queue.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.w1Queue.Release(1)

	if err := s.w1Sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.w1Sem.Release(1)

	budgetCtx, cancel := context.WithTimeout(ctx, W1Budget*time.Millisecond)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(budgetCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-budgetCtx.Done():
		select {
		case r := <-done:
			return r.v, r.err
		case <-time.After(s.cfg.CancelGrace):
			return nil, ErrCancelled
		}
	}
}

// SubmitCold runs a cold-path op (persistent writes, external I/O, long
// analyses) with best-effort semantics: no budget, no backpressure, the
// caller's context governs cancellation.
func (s *Scheduler) SubmitCold(ctx context.Context, op WarmOp) (any, error) {
	return op(ctx)
}

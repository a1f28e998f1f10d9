package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/wfkernel/internal/kernel"
)

func TestScheduler_SubmitWarmRunsOp(t *testing.T) {
	s := New(DefaultConfig())
	v, err := s.SubmitWarm(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestScheduler_SubmitWarmReturnsErrBusyWhenQueueFull(t *testing.T) {
	s := New(Config{W1Workers: 1, W1QueueDepth: 1, CancelGrace: 10 * time.Millisecond})

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = s.SubmitWarm(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-block
			return nil, nil
		})
	}()
	<-started

	_, err := s.SubmitWarm(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	close(block)
}

func TestScheduler_SubmitColdRunsOpWithoutBudget(t *testing.T) {
	s := New(DefaultConfig())
	v, err := s.SubmitCold(context.Background(), func(ctx context.Context) (any, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestScheduler_RunHotFlagsDowngradeOverChatmanConstant(t *testing.T) {
	s := New(DefaultConfig())
	var got *DowngradeEvent
	s.OnDowngrade(func(ev DowngradeEvent) { got = &ev })

	ctx := kernel.InitCtx(kernel.NewAlignedSoA())
	require.NoError(t, ctx.PinRun(kernel.PredRun{Length: 1, Op: kernel.OpAskSP}))
	ir := kernel.IR{Op: kernel.OpAskSP}

	s.RunHot(ctx, ir, 1)

	// The Chatman Constant (8 cycles) is far below what a Go function call
	// actually costs, so every real invocation downgrades its op.
	assert.True(t, s.IsDowngraded(kernel.OpAskSP))
	require.NotNil(t, got)
	assert.Equal(t, kernel.OpAskSP, got.Op)
}

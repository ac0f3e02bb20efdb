package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	err := s.Add("reconcile", "every tuesday", func(context.Context) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule reconcile")
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerFiresAndStops(t *testing.T) {
	s := NewScheduler(nil)
	var runs int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	}))
	s.Start()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}

func TestSchedulerStopCancelsRunningTask(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	started := make(chan struct{}, 1)
	var cancelled int32
	require.NoError(t, s.Add("slow", "@every 1s", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("task never started")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)

	var (
		current atomic.Int32
		peak    atomic.Int32
		done    atomic.Int32
	)
	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			done.Add(1)
		}))
	}

	require.NoError(t, pool.Shutdown(5*time.Second))
	assert.Equal(t, int32(6), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 2, pool.Size())
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(1)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		panic("任务崩溃")
	}))
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		wg.Done()
	}))

	wg.Wait()
	require.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_RejectsAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWorkerPool_ShutdownTimeoutCancelsTasks(t *testing.T) {
	pool := NewWorkerPool(1)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	err := pool.Shutdown(50 * time.Millisecond)
	assert.Error(t, err)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("超时后任务上下文应被取消")
	}
}

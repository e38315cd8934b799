package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed 工作池已关闭
var ErrPoolClosed = errors.New("工作池已关闭")

// Executor 异步执行任务
type Executor interface {
	Submit(task func(ctx context.Context)) error
}

// WorkerPool 有界工作池
// 同时执行的任务数不超过size, 超出的任务排队等待信号量
type WorkerPool struct {
	size int64
	sem  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	active atomic.Int64
}

// NewWorkerPool 创建工作池
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		size:   int64(size),
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit 提交任务, 立即返回
func (p *WorkerPool) Submit(task func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			utils.Debugf("工作池关闭,丢弃排队任务: %v", err)
			return
		}
		defer p.sem.Release(1)

		p.active.Add(1)
		defer p.active.Add(-1)

		defer func() {
			if r := recover(); r != nil {
				utils.Errorf("工作池任务panic: %v", r)
			}
		}()

		task(p.ctx)
	}()
	return nil
}

// Size 最大并发数
func (p *WorkerPool) Size() int {
	return int(p.size)
}

// Active 正在执行的任务数
func (p *WorkerPool) Active() int {
	return int(p.active.Load())
}

// Shutdown 停止接收新任务并等待已提交任务完成
// 超时后取消任务上下文并返回错误
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("等待任务结束超时 (%v), 已取消剩余任务", timeout)
	}
}

package taskqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
)

type Task func(ctx context.Context)

// Pool is a bounded queue drained by a fixed set of workers. Request
// handlers submit and return immediately; a full queue fails fast instead of
// blocking. A panicking task is recorded and never takes a worker down.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Submit sends against the close in Stop; without it a
	// submit racing a shutdown could send on the closed channel.
	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runSafe(id, task)
	}
}

func (p *Pool) runSafe(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(p.ctx).Error("task panic recovered",
				zap.Int("worker", id), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	task(p.ctx)
}

// Submit enqueues without blocking; ErrQueueFull when the queue is at
// capacity.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return appErr.ErrInvalid
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return appErr.ErrInternal
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return appErr.ErrQueueFull
	}
}

// Stop cancels the pool context, stops accepting work and waits for queued
// tasks to drain. Safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cancel()
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

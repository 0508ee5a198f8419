package activity

import (
	"context"
	"sync"
)

// pool is a fixed set of workers pulling attempts from an unbuffered channel,
// so a successful submit means a worker has started the task.
type pool struct {
	tasks     chan func()
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	p := &pool{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			task()
		}
	}
}

func (p *pool) submit(ctx context.Context, task func()) error {
	select {
	case <-p.quit:
		return ErrExecutorClosed
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-p.quit:
		return ErrExecutorClosed
	}
}

// close stops accepting work. Workers exit after their current task; close
// does not wait for abandoned attempts.
func (p *pool) close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
}

// wait blocks until every worker has exited or ctx ends.
func (p *pool) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package workerpool provides a long-lived pool of goroutines shared by every
// folder of a scan run, with per-batch concurrency limits on top.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("workerpool: closed")

// Pool runs submitted functions on a fixed set of workers.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers (at least one).
func New(workers int) *Pool {
	workers = max(workers, 1)
	p := &Pool{tasks: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.tasks {
		fn()
	}
}

// Submit blocks until a worker accepts fn, ctx is done or the pool is closed.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for running tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Batch is a group of tasks on a pool that may use at most limit workers at
// once. Wait blocks until every task started through Go has returned.
type Batch struct {
	pool *Pool
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

func (p *Pool) Batch(limit int) *Batch {
	return &Batch{pool: p, sem: semaphore.NewWeighted(int64(max(limit, 1)))}
}

// Go schedules fn. On error fn will not run.
func (b *Batch) Go(ctx context.Context, fn func()) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	b.wg.Add(1)
	err := b.pool.Submit(ctx, func() {
		defer b.wg.Done()
		defer b.sem.Release(1)
		fn()
	})
	if err != nil {
		b.wg.Done()
		b.sem.Release(1)
	}
	return err
}

func (b *Batch) Wait() {
	b.wg.Wait()
}

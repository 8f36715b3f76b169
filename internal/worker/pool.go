// Package worker provides the bounded concurrency primitives used by batch
// triage: a generic worker pool, a capability-keyed rate limiter, and a
// JSON Lines batch processor.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing a result of type R.
type Job[R any] interface {
	Execute(ctx context.Context) R
}

// Pool executes jobs on a fixed number of workers.
type Pool[R any] struct {
	workers    int
	jobQueue   chan Job[R]
	results    chan R
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	queueOnce  sync.Once
	closeOnce  sync.Once
}

// NewPool creates a pool with the given number of workers; non-positive
// counts get one worker.
func NewPool[R any](workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool[R]{
		workers:    workers,
		jobQueue:   make(chan Job[R], workers*2), // buffered to keep Submit from blocking
		results:    make(chan R, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers.
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. Submitting after Shutdown is a no-op. Submit must
// not be called after Close.
func (p *Pool[R]) Submit(job Job[R]) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Close stops the pool from accepting jobs. The submitter must call Close
// once all jobs are queued or Wait never returns.
func (p *Pool[R]) Close() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

// Wait drains results until every job submitted before Close has finished,
// then returns them. Result order is completion order, not submission
// order. Wait may run concurrently with submission: both queue and results
// channels are bounded, so backlogs larger than the buffers need a reader
// draining while Submit is still running.
func (p *Pool[R]) Wait() []R {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []R
	for result := range p.results {
		results = append(results, result)
	}

	return results
}

// Shutdown cancels in-flight jobs and stops the pool immediately.
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

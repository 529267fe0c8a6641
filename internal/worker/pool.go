package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of workers. Wait returns results in
// submission order regardless of completion order.
type Pool struct {
	workers       int
	jobQueue      chan indexedJob
	results       chan indexedResult
	submitted     int
	collected     map[int]Result
	collectorDone chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancelFunc    context.CancelFunc
	closeOnce     sync.Once

	// OnResult, when set before Start, is called from worker goroutines as each job finishes
	OnResult func(index int, r Result)
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:       workers,
		jobQueue:      make(chan indexedJob, workers*2),
		results:       make(chan indexedResult, workers*2),
		collected:     make(map[int]Result),
		collectorDone: make(chan struct{}),
		ctx:           ctx,
		cancelFunc:    cancel,
	}
}

// Start starts the worker pool and its result collector. It must be called before Wait.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	// Results are drained continuously so Submit never deadlocks on a full queue
	go func() {
		defer close(p.collectorDone)
		for r := range p.results {
			p.collected[r.index] = r.result
		}
	}()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := ij.job.Execute(p.ctx)
			if p.OnResult != nil {
				p.OnResult(ij.index, result)
			}
			select {
			case p.results <- indexedResult{index: ij.index, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job and returns its submission index, or -1 when the pool is cancelled.
// Submit must not be called concurrently with itself or after Wait.
func (p *Pool) Submit(job Job) int {
	if p.ctx.Err() != nil {
		return -1
	}
	idx := p.submitted
	select {
	case <-p.ctx.Done():
		return -1
	case p.jobQueue <- indexedJob{index: idx, job: job}:
		p.submitted++
		return idx
	}
}

// Wait waits for all jobs to complete and returns the results by submission index.
// Slots for jobs that never ran (pool cancelled) are nil.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collectorDone
	p.cancelFunc()

	results := make([]Result, p.submitted)
	for idx, r := range p.collected {
		results[idx] = r
	}

	return results
}

// Shutdown cancels in-flight work and stops the workers
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

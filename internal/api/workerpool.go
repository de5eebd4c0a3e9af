package api

import "sync"

// WorkerPool runs jobs on a fixed number of goroutines and collects their
// results. The job queue is bounded; TrySubmit reports a full queue instead
// of blocking.
type WorkerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool with numWorkers workers and room for
// queueSize pending jobs. Both are raised to at least 1.
func NewWorkerPool[Job any, Result any](numWorkers, queueSize int) *WorkerPool[Job, Result] {
	numWorkers = max(numWorkers, 1)
	queueSize = max(queueSize, 1)

	return &WorkerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, queueSize),
		results:    make(chan Result, queueSize),
	}
}

// Start launches the workers. workerFn is called once per job.
func (p *WorkerPool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit adds a job, blocking while the queue is full. It reports false
// after Close.
func (p *WorkerPool[Job, Result]) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// TrySubmit adds a job without blocking. It reports false when the queue
// is full or the pool is closed.
func (p *WorkerPool[Job, Result]) TrySubmit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Close stops accepting jobs. Queued jobs still run; the results channel
// is closed once the workers finish.
func (p *WorkerPool[Job, Result]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the channel of worker outputs. It must be drained.
func (p *WorkerPool[Job, Result]) Results() <-chan Result {
	return p.results
}

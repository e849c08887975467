package vault

import (
	"runtime"
	"sync"
)

// workerPool fans jobs out to a fixed set of workers and funnels their
// results into one channel. Both channels are sized for the whole batch, so
// a caller may submit every job before reading any result.
type workerPool[Job, Result any] struct {
	workers int
	jobs    chan Job
	out     chan Result
	wg      sync.WaitGroup
}

// newWorkerPool sizes a pool for a batch of queue jobs. A non-positive
// worker count falls back to the host width; a pool never has more workers
// than jobs.
func newWorkerPool[Job, Result any](workers, queue int) *workerPool[Job, Result] {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue > 0 && workers > queue {
		workers = queue
	}
	return &workerPool[Job, Result]{
		workers: workers,
		jobs:    make(chan Job, queue),
		out:     make(chan Result, queue),
	}
}

// run starts the workers. Each takes jobs until the queue closes.
func (p *workerPool[Job, Result]) run(fn func(Job) Result) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.out <- fn(job)
			}
		}()
	}
}

func (p *workerPool[Job, Result]) submit(job Job) {
	p.jobs <- job
}

// close ends submission; the results channel closes once the last worker
// drains the queue.
func (p *workerPool[Job, Result]) close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.out)
	}()
}

func (p *workerPool[Job, Result]) results() <-chan Result {
	return p.out
}

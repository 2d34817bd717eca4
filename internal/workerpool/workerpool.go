// Package workerpool runs independent conversion jobs on a bounded number of
// goroutines.
package workerpool

import (
	"context"
	"runtime"
	"sync"
)

// MaxWorkers caps the pool size when no explicit size is given.
const MaxWorkers = 32

// Pool distributes jobs across workers and collects their results.
type Pool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// New creates a pool with numWorkers workers. A non-positive numWorkers
// means one worker per CPU, capped at MaxWorkers. When numJobs is known the
// pool never starts more workers than jobs.
func New[Job any, Result any](numWorkers, numJobs int) *Pool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = min(runtime.NumCPU(), MaxWorkers)
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}
	return &Pool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, max(numJobs, 0)),
		results:    make(chan Result, max(numJobs, 0)),
	}
}

// Workers returns the number of workers the pool runs.
func (p *Pool[Job, Result]) Workers() int {
	return p.numWorkers
}

// Start launches the workers. workerFn is called once per job.
func (p *Pool[Job, Result]) Start(workerFn func(Job) Result) {
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

// Submit queues a job.
func (p *Pool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close stops accepting jobs. The results channel is closed once every
// worker has finished.
func (p *Pool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the channel results are delivered on, in completion order.
func (p *Pool[Job, Result]) Results() <-chan Result {
	return p.results
}

type indexed[T any] struct {
	i int
	v T
}

// Map applies fn to every job on up to workers goroutines and returns the
// results in job order. Every job is passed to fn; fn should check ctx and
// return early once it is cancelled.
func Map[Job any, Result any](ctx context.Context, workers int, jobs []Job, fn func(context.Context, Job) Result) []Result {
	out := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return out
	}
	pool := New[indexed[Job], indexed[Result]](workers, len(jobs))
	pool.Start(func(j indexed[Job]) indexed[Result] {
		return indexed[Result]{i: j.i, v: fn(ctx, j.v)}
	})
	for i, job := range jobs {
		pool.Submit(indexed[Job]{i: i, v: job})
	}
	pool.Close()
	for r := range pool.Results() {
		out[r.i] = r.v
	}
	return out
}

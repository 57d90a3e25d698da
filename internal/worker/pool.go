// Package worker runs independent tasks on a bounded set of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotStarted is returned by Submit before Start.
var ErrNotStarted = errors.New("pool not started")

// ErrStopped is returned by Submit after Stop or StopWait.
var ErrStopped = errors.New("pool stopped")

// Task represents a task to be executed by a worker.
type Task interface {
	Execute(ctx context.Context) error
	ID() string
}

// Result contains the result of a task execution. Index is the submission
// order of the task, starting at zero.
type Result struct {
	TaskID   string
	Index    int
	Error    error
	Duration time.Duration
}

type envelope struct {
	task  Task
	index int
}

// Pool manages a pool of workers for parallel processing.
type Pool struct {
	workers   int
	tasks     chan envelope
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	stopped   atomic.Bool
	stopOnce  sync.Once
	submitMu  sync.Mutex
	submitted int
	processed atomic.Int64
	errors    atomic.Int64
}

// Config configures the worker pool.
type Config struct {
	Workers   int // Number of workers (default: GOMAXPROCS)
	QueueSize int // Size of task and result queues (default: workers * 2)
}

// NewPool creates a new worker pool.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}

	return &Pool{
		workers: cfg.Workers,
		tasks:   make(chan envelope, cfg.QueueSize),
		results: make(chan Result, cfg.QueueSize),
	}
}

// Start launches the workers. Tasks see a context derived from ctx that is
// also cancelled by Stop.
func (p *Pool) Start(ctx context.Context) {
	if p.started.Swap(true) {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case env, ok := <-p.tasks:
			if !ok {
				return
			}

			start := time.Now()
			err := p.execute(env.task)

			p.processed.Add(1)
			if err != nil {
				p.errors.Add(1)
			}

			res := Result{
				TaskID:   env.task.ID(),
				Index:    env.index,
				Error:    err,
				Duration: time.Since(start),
			}
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// execute runs a task, turning a panic into an error so one bad task cannot
// take the pool down.
func (p *Pool) execute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.ID(), r)
		}
	}()
	return task.Execute(p.ctx)
}

// Submit queues a task. It blocks while the queue is full.
func (p *Pool) Submit(task Task) error {
	if !p.started.Load() {
		return ErrNotStarted
	}

	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	if p.stopped.Load() {
		return ErrStopped
	}

	env := envelope{task: task, index: p.submitted}
	select {
	case p.tasks <- env:
		p.submitted++
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the results channel. It is closed by Stop and StopWait.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop cancels running tasks and shuts the pool down without draining.
func (p *Pool) Stop() {
	p.shutdown(true)
}

// StopWait lets queued tasks finish, then shuts the pool down. Results must
// be consumed concurrently or the queue must be large enough to hold them.
func (p *Pool) StopWait() {
	p.shutdown(false)
}

func (p *Pool) shutdown(cancelFirst bool) {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		if !p.started.Load() {
			close(p.results)
			return
		}
		if cancelFirst {
			p.cancel()
		}
		p.submitMu.Lock()
		close(p.tasks)
		p.submitMu.Unlock()
		p.wg.Wait()
		p.cancel()
		close(p.results)
	})
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Processed: p.processed.Load(),
		Errors:    p.errors.Load(),
		Pending:   len(p.tasks),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int
	Processed int64
	Errors    int64
	Pending   int
}

// String returns a string representation of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("workers=%d processed=%d errors=%d pending=%d",
		s.Workers, s.Processed, s.Errors, s.Pending)
}

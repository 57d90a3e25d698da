package worker

import "context"

// FuncTask wraps a function as a task.
type FuncTask struct {
	id string
	fn func(ctx context.Context) error
}

// NewFuncTask creates a task from a function.
func NewFuncTask(id string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{id: id, fn: fn}
}

// ID returns the task identifier.
func (f *FuncTask) ID() string { return f.id }

// Execute executes the function.
func (f *FuncTask) Execute(ctx context.Context) error { return f.fn(ctx) }

// RunAll executes tasks on a dedicated pool and joins them. The returned
// slice is ordered like tasks regardless of completion order. If ctx ends
// first, unfinished tasks report ctx.Err().
func RunAll(ctx context.Context, workers int, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if workers <= 0 || workers > len(tasks) {
		workers = len(tasks)
	}

	pool := NewPool(Config{Workers: workers, QueueSize: len(tasks)})
	pool.Start(ctx)

	done := make([]bool, len(tasks))
	submitted := 0
	for _, t := range tasks {
		if err := pool.Submit(t); err != nil {
			break
		}
		submitted++
	}

	for got := 0; got < submitted; got++ {
		select {
		case r := <-pool.Results():
			results[r.Index] = r
			done[r.Index] = true
		case <-ctx.Done():
			pool.Stop()
			fillUnfinished(results, done, tasks, ctx.Err())
			return results
		}
	}
	pool.StopWait()

	if err := ctx.Err(); err != nil {
		fillUnfinished(results, done, tasks, err)
	}
	return results
}

func fillUnfinished(results []Result, done []bool, tasks []Task, err error) {
	for i, t := range tasks {
		if !done[i] {
			results[i] = Result{TaskID: t.ID(), Index: i, Error: err}
		}
	}
}

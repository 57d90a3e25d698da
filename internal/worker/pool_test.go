package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// mockTask for testing
type mockTask struct {
	id       string
	duration time.Duration
	err      error
}

func (t *mockTask) ID() string { return t.id }
func (t *mockTask) Execute(ctx context.Context) error {
	select {
	case <-time.After(t.duration):
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPool_BasicExecution(t *testing.T) {
	pool := NewPool(Config{Workers: 2, QueueSize: 10})
	pool.Start(context.Background())
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		task := &mockTask{id: fmt.Sprintf("task-%d", i), duration: 10 * time.Millisecond}
		if err := pool.Submit(task); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	seen := map[int]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 5 {
		select {
		case r := <-pool.Results():
			if r.Error != nil {
				t.Errorf("unexpected error: %v", r.Error)
			}
			if r.TaskID != fmt.Sprintf("task-%d", r.Index) {
				t.Errorf("result %s carries index %d", r.TaskID, r.Index)
			}
			seen[r.Index] = true
		case <-timeout:
			t.Fatal("timeout waiting for results")
		}
	}

	if stats := pool.Stats(); stats.Processed != 5 {
		t.Errorf("expected 5 processed, got %d", stats.Processed)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(Config{Workers: 2})
	pool.Start(context.Background())
	defer pool.Stop()

	expectedErr := errors.New("task failed")
	if err := pool.Submit(&mockTask{id: "failing-task", duration: time.Millisecond, err: expectedErr}); err != nil {
		t.Fatal(err)
	}

	result := <-pool.Results()
	if !errors.Is(result.Error, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, result.Error)
	}
	if stats := pool.Stats(); stats.Errors != 1 {
		t.Errorf("expected 1 error, got %d", stats.Errors)
	}
}

func TestPool_PanicBecomesError(t *testing.T) {
	pool := NewPool(Config{Workers: 1})
	pool.Start(context.Background())
	defer pool.Stop()

	_ = pool.Submit(NewFuncTask("boom", func(context.Context) error { panic("kaboom") }))

	result := <-pool.Results()
	if result.Error == nil {
		t.Fatal("expected panic to surface as an error")
	}
}

func TestPool_Cancellation(t *testing.T) {
	pool := NewPool(Config{Workers: 2})
	pool.Start(context.Background())

	_ = pool.Submit(&mockTask{id: "long-task", duration: 10 * time.Second})

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a running task")
	}

	if err := pool.Submit(&mockTask{id: "late"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after Stop = %v, want ErrStopped", err)
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	pool := NewPool(Config{Workers: 4, QueueSize: 100})
	pool.Start(context.Background())
	defer pool.Stop()

	var submitted atomic.Int64
	for i := 0; i < 10; i++ {
		go func(n int) {
			for j := 0; j < 10; j++ {
				task := &mockTask{id: fmt.Sprintf("task-%d-%d", n, j), duration: time.Millisecond}
				if err := pool.Submit(task); err == nil {
					submitted.Add(1)
				}
			}
		}(i)
	}

	time.Sleep(500 * time.Millisecond)

	if stats := pool.Stats(); stats.Processed < 50 {
		t.Errorf("expected at least 50 processed, got %d", stats.Processed)
	}
}

func TestPool_NotStarted(t *testing.T) {
	pool := NewPool(Config{Workers: 2})
	if err := pool.Submit(&mockTask{id: "test"}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Submit before Start = %v, want ErrNotStarted", err)
	}
}

func TestPool_DoubleStartAndStop(t *testing.T) {
	pool := NewPool(Config{Workers: 2})
	pool.Start(context.Background())
	pool.Start(context.Background())
	pool.Stop()
	pool.StopWait()
}

func TestPool_DefaultConfig(t *testing.T) {
	pool := NewPool(Config{})
	if pool.workers != runtime.GOMAXPROCS(0) {
		t.Errorf("expected %d workers, got %d", runtime.GOMAXPROCS(0), pool.workers)
	}
}

func TestStats_String(t *testing.T) {
	s := Stats{Workers: 4, Processed: 100, Errors: 5, Pending: 10}
	if got := s.String(); got != "workers=4 processed=100 errors=5 pending=10" {
		t.Errorf("String() = %q", got)
	}
}

func TestRunAll_PreservesOrder(t *testing.T) {
	tasks := make([]Task, 6)
	for i := range tasks {
		// later tasks finish first
		tasks[i] = &mockTask{id: fmt.Sprintf("t%d", i), duration: time.Duration(6-i) * 5 * time.Millisecond}
	}

	results := RunAll(context.Background(), 6, tasks)

	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, r := range results {
		if r.TaskID != fmt.Sprintf("t%d", i) || r.Index != i {
			t.Errorf("results[%d] = %+v", i, r)
		}
		if r.Error != nil {
			t.Errorf("results[%d] error = %v", i, r.Error)
		}
	}
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	failure := errors.New("fetch failed")
	tasks := []Task{
		&mockTask{id: "ok-1", duration: time.Millisecond},
		&mockTask{id: "bad", duration: time.Millisecond, err: failure},
		&mockTask{id: "ok-2", duration: time.Millisecond},
	}

	results := RunAll(context.Background(), 2, tasks)

	if results[0].Error != nil || results[2].Error != nil {
		t.Errorf("healthy tasks reported errors: %+v", results)
	}
	if !errors.Is(results[1].Error, failure) {
		t.Errorf("results[1].Error = %v, want %v", results[1].Error, failure)
	}
}

func TestRunAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tasks := []Task{
		&mockTask{id: "fast", duration: time.Millisecond},
		&mockTask{id: "slow", duration: 5 * time.Second},
	}

	start := time.Now()
	results := RunAll(ctx, 2, tasks)
	if time.Since(start) > 2*time.Second {
		t.Fatal("RunAll did not honour cancellation")
	}
	if results[1].Error == nil {
		t.Error("slow task should report a context error")
	}
	if results[1].TaskID != "slow" {
		t.Errorf("results[1].TaskID = %q", results[1].TaskID)
	}
}

func TestRunAll_Empty(t *testing.T) {
	if got := RunAll(context.Background(), 4, nil); len(got) != 0 {
		t.Errorf("RunAll(nil) = %v", got)
	}
}

func TestFuncTask(t *testing.T) {
	executed := false
	task := NewFuncTask("func-task", func(ctx context.Context) error {
		executed = true
		return nil
	})

	if task.ID() != "func-task" {
		t.Errorf("unexpected ID: %s", task.ID())
	}
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !executed {
		t.Error("function was not executed")
	}
}

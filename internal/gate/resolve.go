package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/worker"
)

// DefaultConcurrency bounds parallel diff fetches when none is configured.
const DefaultConcurrency = 5

// ResolveOptions configures how diffs are fetched.
type ResolveOptions struct {
	Concurrency int
	// Timeout bounds a single diff fetch. Zero means no limit.
	Timeout time.Duration
	// Filter drops ignored paths before anything is fetched.
	Filter *pr.PathFilter
}

// Fetch describes one diff fetch.
type Fetch struct {
	Path     string
	Duration time.Duration
	Err      error
}

// Resolution is a snapshot plus the outcome of every fetch, in path order.
type Resolution struct {
	Snapshot *pr.Snapshot
	Fetches  []Fetch
}

// Errors returns the failed fetches as report entries.
func (r *Resolution) Errors() []FetchError {
	var out []FetchError
	for _, f := range r.Fetches {
		if f.Err != nil {
			out = append(out, FetchError{Path: f.Path, Error: f.Err.Error()})
		}
	}
	return out
}

// Resolve reads metadata from src and fetches the diff of every modified and
// created file concurrently, joining all fetches before it returns. A failed
// fetch leaves that file's diff unavailable and is recorded in the
// resolution; it does not fail the call. Resolve only fails when metadata
// cannot be read or ctx ends.
func Resolve(ctx context.Context, src pr.Source, opts ResolveOptions) (*Resolution, error) {
	meta, err := src.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading metadata from %s: %w", src.Name(), err)
	}
	filtered := opts.Filter.Apply(*meta)

	paths := uniquePaths(filtered.Modified, filtered.Created)
	texts := make([]string, len(paths))
	tasks := make([]worker.Task, len(paths))
	for i, p := range paths {
		tasks[i] = worker.NewFuncTask("diff:"+p, func(ctx context.Context) error {
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			text, err := src.Diff(ctx, p)
			if err != nil {
				return fmt.Errorf("fetching diff for %s: %w", p, err)
			}
			texts[i] = text
			return nil
		})
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := worker.RunAll(ctx, concurrency, tasks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Resolution{Fetches: make([]Fetch, len(paths))}
	diffs := make(map[string]string, len(paths))
	for i, r := range results {
		res.Fetches[i] = Fetch{Path: paths[i], Duration: r.Duration, Err: r.Error}
		if r.Error == nil {
			diffs[paths[i]] = texts[i]
		}
	}
	res.Snapshot = pr.NewSnapshot(filtered, diffs)
	return res, nil
}

func uniquePaths(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, p := range l {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

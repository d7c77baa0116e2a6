// Package orchestrator runs independent work items under a bounded worker pool
// and returns their results in input order.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is used when Options.Workers is not positive.
const DefaultWorkers = 4

// Result holds the outcome for one input item. Err is set when the item
// failed or was never started because the context ended.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// OK reports whether the item completed without error.
func (r Result[R]) OK() bool {
	return r.Err == nil
}

// Func is the unit of work applied to each item.
type Func[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Options configures a Map call.
type Options struct {
	// Workers bounds the number of items running at once.
	Workers int
	// OnProgress is called after each item completes, from the worker that
	// finished it. Calls are serialized.
	OnProgress func(done, total int)
}

// Map applies fn to every item with at most opts.Workers running
// concurrently. Results are returned in input order. A failing item never
// cancels its siblings; its error is recorded in its own slot, and a panic in
// fn is converted to an error for that item.
//
// When ctx ends, no further items are started. Items already running are
// allowed to finish, items never started carry the context error, and Map
// returns the context error alongside the full result slice.
func Map[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options) ([]Result[R], error) {
	total := len(items)
	results := make([]Result[R], total)
	for i := range results {
		results[i].Index = i
	}
	if total == 0 {
		return results, ctx.Err()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > total {
		workers = total
	}
	sem := semaphore.NewWeighted(int64(workers))

	var (
		wg         sync.WaitGroup
		progressMu sync.Mutex
		done       int
	)
	report := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		done++
		if opts.OnProgress != nil {
			opts.OnProgress(done, total)
		}
	}

	submitted := 0
	for ; submitted < total; submitted++ {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer sem.Release(1)
			value, err := run(ctx, index, items[index], fn)
			results[index].Value = value
			results[index].Err = err
			report()
		}(submitted)
	}
	wg.Wait()

	if submitted < total {
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		for i := submitted; i < total; i++ {
			results[i].Err = cause
		}
		return results, cause
	}
	return results, ctx.Err()
}

func run[T, R any](ctx context.Context, index int, item T, fn Func[T, R]) (value R, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("item %d panicked: %v\n%s", index, recovered, debug.Stack())
		}
	}()
	return fn(ctx, index, item)
}

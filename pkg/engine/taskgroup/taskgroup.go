// Package taskgroup runs a batch of tasks concurrently and joins them into
// a per-task result-or-error list. Nothing is lost and nothing propagates:
// a failed or panicking task occupies its slot with an error while its
// siblings run to completion.
package taskgroup

import (
	"context"
	"fmt"
	"sync"
)

// Result captures one task's outcome.
type Result[T any] struct {
	Value T
	Err   error
}

// Task produces a value or an error under the given context.
type Task[T any] func(ctx context.Context) (T, error)

// Join runs all tasks with at most limit in flight (limit <= 0 means
// unbounded) and returns their outcomes in submission order. Join returns
// only after every task has finished.
func Join[T any](ctx context.Context, limit int, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var sem chan struct{}
	if limit > 0 {
		sem = make(chan struct{}, limit)
	}

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = run(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return results
}

// run is the panic barrier around a single task.
func run[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = Result[T]{Value: zero, Err: fmt.Errorf("task panic: %v", r)}
		}
	}()
	v, err := task(ctx)
	return Result[T]{Value: v, Err: err}
}

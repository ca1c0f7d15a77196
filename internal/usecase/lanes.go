package usecase

import (
	"context"
	"fmt"
	"sync"
)

type laneResult[R any] struct {
	value R
	err   error
}

// runLanes processes items on at most lanes goroutines, pulling work in input order.
// It returns once every item has finished; results are indexed like items.
func runLanes[T, R any](ctx context.Context, items []T, lanes int, fn func(context.Context, T) (R, error)) []laneResult[R] {
	results := make([]laneResult[R], len(items))
	if len(items) == 0 {
		return results
	}
	if lanes <= 0 {
		lanes = 1
	}
	if lanes > len(items) {
		lanes = len(items)
	}

	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	wg.Add(lanes)
	for n := 0; n < lanes; n++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = runOne(ctx, items[i], fn)
			}
		}()
	}
	wg.Wait()

	return results
}

func runOne[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (res laneResult[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = laneResult[R]{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	value, err := fn(ctx, item)
	return laneResult[R]{value: value, err: err}
}

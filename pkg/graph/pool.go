package graph

import (
	"context"
	"runtime"
	"sync"
)

// Parallel calls fn(i) for every i in [0, n) on at most workers goroutines
// and returns once all calls finished. It stops handing out work when ctx is
// done or stop reports true, and returns ctx.Err().
func Parallel(ctx context.Context, workers, n int, stop func() bool, fn func(i int)) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	workers = max(1, min(workers, n))
	jobs := make(chan int, workers)

	var wg sync.WaitGroup

	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()

			for i := range jobs {
				if ctx.Err() != nil || (stop != nil && stop()) {
					continue // Drain remaining items so the sender does not block.
				}

				fn(i)
			}
		}()
	}

	for i := range n {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return ctx.Err()
}

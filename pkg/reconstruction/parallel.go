package reconstruction

import (
	"runtime"
	"sync"
)

// parallelFor splits [0, n) into at most workers contiguous chunks and runs fn
// on each chunk in its own goroutine. Chunks never overlap, so fn may write to
// per-index state without locking.
func parallelFor(n, workers int, fn func(start, end int)) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if n <= 0 {
		return
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

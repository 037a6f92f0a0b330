package demand

import (
	"runtime"
	"sync"
)

// parallelBatchThreshold is the record count below which PredictBatch
// stays sequential; goroutine overhead dominates on small batches.
const parallelBatchThreshold = 256

// parallelize splits [0, items) into one contiguous chunk per CPU core
// and runs fn over the chunks concurrently.
func parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// Package utils holds small helpers shared by the numeric packages.
package utils

import (
	"runtime"
	"sync"
)

// MultiThread runs f over the range [start, end), split into chunks of at most
// opsPerThread values that are handed out to one goroutine per CPU. f is called with the
// bounds of each chunk, and must be safe to run on disjoint chunks concurrently.
//
// Ranges that fit in a single chunk are run on the calling goroutine.
func MultiThread(start, end int, f func(lo, hi int), opsPerThread int) {
	if end <= start {
		return
	} else if opsPerThread < 1 || end-start <= opsPerThread {
		f(start, end)
		return
	}

	chunks := (end - start + opsPerThread - 1) / opsPerThread
	numThreads := runtime.NumCPU()
	if numThreads > chunks {
		numThreads = chunks
	}

	index := start
	var indexMux sync.Mutex

	var wg sync.WaitGroup
	wg.Add(numThreads)
	for thread := 0; thread < numThreads; thread++ {
		go func() {
			defer wg.Done()
			for {
				indexMux.Lock()
				if index >= end {
					indexMux.Unlock()
					return
				}

				lo := index
				index += opsPerThread
				indexMux.Unlock()

				hi := lo + opsPerThread
				if hi > end {
					hi = end
				}
				f(lo, hi)
			}
		}()
	}

	wg.Wait()
}

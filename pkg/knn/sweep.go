package knn

import "sync"

// Sweep is C4: for one feature prefix length f, evaluate every k in
// [kMin, kMax] against the whole test set and return correct[k-kMin], the
// count of test points whose predicted label equals their true label.
//
// Algorithm (spec.md §4.4): for each test index i, C2 is invoked exactly
// once to build the neighbor list at length f; C3 is then called once per
// k against that same list, so the k-loop costs one vote over a prefix of
// the shared list per k rather than one full rebuild of the neighbor list
// per k.
//
// Concurrency follows the teacher's worker-pool idiom (pkg/hnsw batch
// operations): a buffered job channel of test indices, numWorkers
// goroutines each accumulating a thread-local correct[] slice, reduced
// under a mutex once every worker has drained the channel.
func Sweep(metric Metric, train *Matrix, trainLabels []uint32, test *Matrix, testLabels []uint32, f, kMin, kMax, numWorkers int) []int {
	correct := make([]int, kMax-kMin+1)
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan int, test.Rows)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, kMax-kMin+1)

			for i := range jobs {
				neighbors := Neighbors(metric, train, trainLabels, test.Row(i), f, kMax)
				for k := kMin; k <= kMax; k++ {
					if Vote(neighbors, k) == testLabels[i] {
						local[k-kMin]++
					}
				}
			}

			mu.Lock()
			for idx, v := range local {
				correct[idx] += v
			}
			mu.Unlock()
		}()
	}

	for i := 0; i < test.Rows; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return correct
}

package knn

import "sync"

// ConfusionMatrix is an nClasses x nClasses non-negative integer matrix;
// entry [t][p] counts points with true label t predicted as p (spec.md
// §3). Sum() and TrueCount() below back invariant 8 of spec.md §8.
type ConfusionMatrix [][]int

// NewConfusionMatrix allocates a zeroed nClasses x nClasses matrix.
func NewConfusionMatrix(nClasses int) ConfusionMatrix {
	m := make(ConfusionMatrix, nClasses)
	for i := range m {
		m[i] = make([]int, nClasses)
	}
	return m
}

// Sum returns the total of every entry.
func (m ConfusionMatrix) Sum() int {
	total := 0
	for _, row := range m {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// TrueCount returns the number of points whose true label is t.
func (m ConfusionMatrix) TrueCount(t int) int {
	total := 0
	for _, v := range m[t] {
		total += v
	}
	return total
}

func (m ConfusionMatrix) add(other ConfusionMatrix) {
	for t := range m {
		for p := range m[t] {
			m[t][p] += other[t][p]
		}
	}
}

// ScoreResult is the output of C7 for one (data set, k*, f*) evaluation.
type ScoreResult struct {
	Predictions []uint32
	Correct     int
	Confusion   ConfusionMatrix
}

// Score is C7: given the optimal (k*, f*), classify every row of eval
// against train and produce its predictions, correct count and confusion
// matrix. Used both test-vs-train (the reported result) and
// training-as-test (the overfitting diagnostic), per spec.md §4.7.
func Score(metric Metric, train *Matrix, trainLabels []uint32, eval *Matrix, evalLabels []uint32, kStar, fStar, nClasses, numWorkers int) ScoreResult {
	predictions := make([]uint32, eval.Rows)
	confusion := NewConfusionMatrix(nClasses)

	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan int, eval.Rows)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var correct int

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			localConfusion := NewConfusionMatrix(nClasses)
			localCorrect := 0

			for i := range jobs {
				neighbors := Neighbors(metric, train, trainLabels, eval.Row(i), fStar, kStar)
				predicted := Vote(neighbors, kStar)
				predictions[i] = predicted

				trueLabel := evalLabels[i]
				localConfusion[trueLabel][predicted]++
				if predicted == trueLabel {
					localCorrect++
				}
			}

			mu.Lock()
			confusion.add(localConfusion)
			correct += localCorrect
			mu.Unlock()
		}()
	}

	for i := 0; i < eval.Rows; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return ScoreResult{Predictions: predictions, Correct: correct, Confusion: confusion}
}

// Accuracy returns correct/total, the ratio spec.md §6 requires — the
// denominator is always the size of the data set actually classified
// (test-set size for the test diagnostic, training-set size for the
// training diagnostic), per the resolution of the open question in
// spec.md §9.1: never a different set's row count.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

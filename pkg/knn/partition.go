package knn

// HomogeneousAssignment is C5's static stride partition: rank r examines
// {1+r, 1+r+P, 1+r+2P, ...} intersected with [1, maxFeatures], per
// spec.md §4.5 (the f-range is inclusive of maxFeatures — see the end-to-
// end scenarios of spec.md §8, which sweep f up to and including F_max).
func HomogeneousAssignment(rank, worldSize, maxFeatures int) []int {
	var fs []int
	for f := 1 + rank; f <= maxFeatures; f += worldSize {
		fs = append(fs, f)
	}
	return fs
}

// RunHomogeneous executes C5 for a single rank: sweeps every f assigned to
// it, tracks the per-rank best Candidate under Better, and returns it along
// with whether any f was assigned at all (a rank may legitimately get none
// when worldSize > maxFeatures).
func RunHomogeneous(metric Metric, train *Matrix, trainLabels []uint32, test *Matrix, testLabels []uint32, rank, worldSize, maxFeatures, kMin, kMax, numWorkers int) (Candidate, bool) {
	var best Candidate
	haveBest := false

	for _, f := range HomogeneousAssignment(rank, worldSize, maxFeatures) {
		correct := Sweep(metric, train, trainLabels, test, testLabels, f, kMin, kMax, numWorkers)
		cand := BestInSweep(f, kMin, correct)
		best, haveBest = Reduce(best, cand, haveBest)
	}

	return best, haveBest
}

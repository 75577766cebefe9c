package knn

// Candidate is one sweep sample: a (k, f) pair and the number of test
// points it classified correctly.
//
// Ordering (spec.md §3, glossary): lexicographic by Correct descending,
// then F ascending, then K ascending. Every place a "best" Candidate is
// selected or reduced — the homogeneous per-rank tracker, the rank-0
// reduction, and both sides of the heterogeneous coordinator — must use
// Better below rather than comparing Correct alone; a plain max over
// Correct reproduces the source's tie-break bug (spec.md §4.5).
type Candidate struct {
	K       int
	F       int
	Correct int
}

// Better reports whether a should replace b as the tracked best Candidate.
func Better(a, b Candidate) bool {
	if a.Correct != b.Correct {
		return a.Correct > b.Correct
	}
	if a.F != b.F {
		return a.F < b.F
	}
	return a.K < b.K
}

// Reduce folds cand into acc, returning whichever Candidate wins under
// Better. acc may be the zero Candidate on the first call: a zero Correct
// is a legitimate, if pathological, value (spec.md §9.4) and is never
// treated as "no candidate yet" — callers that need an explicit "none yet"
// sentinel should track that separately, not by relying on zero Correct.
func Reduce(acc, cand Candidate, accValid bool) (Candidate, bool) {
	if !accValid || Better(cand, acc) {
		return cand, true
	}
	return acc, true
}

// BestInSweep picks, for a single f, the Candidate with the smallest k
// among those achieving the maximum correct count in correct (indexed by
// k-kMin, as C4 produces it).
func BestInSweep(f, kMin int, correct []int) Candidate {
	best := Candidate{K: kMin, F: f, Correct: correct[0]}
	for i := 1; i < len(correct); i++ {
		cand := Candidate{K: kMin + i, F: f, Correct: correct[i]}
		if Better(cand, best) {
			best = cand
		}
	}
	return best
}

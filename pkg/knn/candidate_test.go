package knn

import "testing"

func TestBetterOrdersByCorrectThenFThenK(t *testing.T) {
	tests := []struct {
		name string
		a, b Candidate
		want bool
	}{
		{"higher correct wins", Candidate{Correct: 5}, Candidate{Correct: 3}, true},
		{"lower correct loses", Candidate{Correct: 3}, Candidate{Correct: 5}, false},
		{"tie correct, smaller f wins", Candidate{Correct: 4, F: 1}, Candidate{Correct: 4, F: 2}, true},
		{"tie correct and f, smaller k wins", Candidate{Correct: 4, F: 1, K: 1}, Candidate{Correct: 4, F: 1, K: 2}, true},
		{"identical loses", Candidate{Correct: 4, F: 1, K: 1}, Candidate{Correct: 4, F: 1, K: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Better(tt.a, tt.b); got != tt.want {
				t.Errorf("Better(%+v, %+v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestBestInSweepPicksSmallestKOnTie(t *testing.T) {
	// kMin=1, correct values for k=1,2,3 are 4,4,2: expect k=1 (smallest
	// k among the tied maximum).
	best := BestInSweep(7, 1, []int{4, 4, 2})
	if best.K != 1 || best.F != 7 || best.Correct != 4 {
		t.Errorf("unexpected best candidate: %+v", best)
	}
}

func TestReduceZeroCorrectCandidateIsRepresentable(t *testing.T) {
	// A zero-correct candidate is representable and wins against no prior
	// candidate, per spec.md §9.4.
	best, valid := Reduce(Candidate{}, Candidate{K: 1, F: 1, Correct: 0}, false)
	if !valid || best.Correct != 0 {
		t.Errorf("expected zero-correct candidate to be accepted as first best, got %+v valid=%v", best, valid)
	}
}

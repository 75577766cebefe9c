package knn

import "testing"

func TestVoteMajority(t *testing.T) {
	neighbors := []DistanceLabel{
		{Distance: 1, Label: 5, TrainIndex: 0},
		{Distance: 2, Label: 5, TrainIndex: 1},
		{Distance: 3, Label: 7, TrainIndex: 2},
	}
	if got := Vote(neighbors, 3); got != 5 {
		t.Errorf("expected majority label 5, got %d", got)
	}
}

func TestVoteTieBrokenBySmallestCumulativeDistance(t *testing.T) {
	// Two labels each appearing once among the top 2: label 1 at distance
	// 10, label 2 at distance 1. Label 2 must win (smaller cumulative
	// distance among tied label counts).
	neighbors := []DistanceLabel{
		{Distance: 10, Label: 1, TrainIndex: 0},
		{Distance: 1, Label: 2, TrainIndex: 1},
	}
	if got := Vote(neighbors, 2); got != 2 {
		t.Errorf("expected tie-break winner label 2, got %d", got)
	}
}

func TestVoteIdempotentOnPrefix(t *testing.T) {
	neighbors := []DistanceLabel{
		{Distance: 1, Label: 9, TrainIndex: 0},
		{Distance: 2, Label: 9, TrainIndex: 1},
		{Distance: 3, Label: 1, TrainIndex: 2},
		{Distance: 4, Label: 1, TrainIndex: 3},
		{Distance: 5, Label: 1, TrainIndex: 4},
	}
	// Voting with k=2 must depend only on the first two elements,
	// regardless of what follows in the slice.
	if got := Vote(neighbors, 2); got != 9 {
		t.Errorf("expected label 9 using only first 2 neighbors, got %d", got)
	}
}

func TestVoteExactTieFallsToSmallerLabel(t *testing.T) {
	neighbors := []DistanceLabel{
		{Distance: 1, Label: 2, TrainIndex: 0},
		{Distance: 1, Label: 1, TrainIndex: 1},
	}
	if got := Vote(neighbors, 2); got != 1 {
		t.Errorf("expected smaller label 1 on exact tie, got %d", got)
	}
}

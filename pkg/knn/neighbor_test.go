package knn

import "testing"

func TestNeighborsMonotonicAndTieBreak(t *testing.T) {
	// Four training points, two of them exactly equidistant from the test
	// point in Euclidean space.
	train := &Matrix{
		Data: []float32{
			0, 0, // idx 0, dist sqrt(2)
			1, 0, // idx 1, dist 1
			0, 2, // idx 2, dist sqrt(2) (tie with idx 0)
			5, 5, // idx 3, dist far
		},
		Rows: 4, Cols: 2,
	}
	labels := []uint32{10, 11, 12, 13}
	test := []float32{1, 1}

	got := Neighbors(Euclidean, train, labels, test, 2, 4)

	if len(got) != 4 {
		t.Fatalf("expected 4 neighbors, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Fatalf("neighbor list not ascending at %d: %v", i, got)
		}
	}
	// idx 1 (dist 1) should come first (smallest distance).
	if got[0].TrainIndex != 1 {
		t.Errorf("expected closest neighbor to be train index 1, got %d", got[0].TrainIndex)
	}
	// idx 0 and idx 2 tie at distance sqrt(2); idx 0 (earlier index) must
	// sort first among them.
	if got[1].TrainIndex != 0 || got[2].TrainIndex != 2 {
		t.Errorf("expected tie-break by ascending training index, got order %d,%d", got[1].TrainIndex, got[2].TrainIndex)
	}
}

func TestNeighborsBoundedByKMax(t *testing.T) {
	train := &Matrix{Data: []float32{0, 1, 2, 3, 4}, Rows: 5, Cols: 1}
	labels := []uint32{0, 1, 2, 3, 4}
	test := []float32{0}

	got := Neighbors(Euclidean, train, labels, test, 1, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors bounded by kMax, got %d", len(got))
	}
	if got[0].TrainIndex != 0 || got[1].TrainIndex != 1 {
		t.Errorf("expected the two closest indices 0,1 in order, got %d,%d", got[0].TrainIndex, got[1].TrainIndex)
	}
}

func TestNeighborsTieAtCapacityKeepsEarlierIndex(t *testing.T) {
	// Three points all at the same distance, kMax=2: indices 0 and 1 must
	// win over index 2 since they arrive first.
	train := &Matrix{Data: []float32{1, -1, 1}, Rows: 3, Cols: 1}
	labels := []uint32{100, 101, 102}
	test := []float32{0}

	got := Neighbors(Euclidean, train, labels, test, 1, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	seen := map[int]bool{got[0].TrainIndex: true, got[1].TrainIndex: true}
	if seen[2] {
		t.Errorf("expected later-index tie to lose its slot, got indices %d,%d", got[0].TrainIndex, got[1].TrainIndex)
	}
}

func TestNeighborsTieStraddlingCapacityEvictsLaterIndex(t *testing.T) {
	// idx0 and idx1 tie at distance 5 and fill the heap first; idx2 then
	// arrives strictly closer at distance 3. Only one of the tied slots
	// can be evicted, and it must be the later index (idx1), leaving
	// {idx2, idx0} rather than {idx2, idx1}.
	train := &Matrix{Data: []float32{5, 5, 3}, Rows: 3, Cols: 1}
	labels := []uint32{0, 1, 2}
	test := []float32{0}

	got := Neighbors(Euclidean, train, labels, test, 1, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].TrainIndex != 2 || got[1].TrainIndex != 0 {
		t.Errorf("expected indices {2, 0} in order, got {%d, %d}", got[0].TrainIndex, got[1].TrainIndex)
	}
}

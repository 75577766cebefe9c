package knn

import (
	"container/heap"
	"sort"
)

// DistanceLabel is one entry of a test point's ranked neighbor list: the
// distance to one training tuple, its label and its original row index
// (needed to break distance ties deterministically).
type DistanceLabel struct {
	Distance   float32
	Label      uint32
	TrainIndex int
}

// neighborHeap is a bounded max-heap over DistanceLabel by Distance: the
// largest distance sits at the root so it is the first candidate evicted
// when a closer training tuple arrives. Capacity is k_max; this is the
// "heap of capacity k_max updated in one O(N log k_max) pass" construction
// spec.md §4.2 asks for, generalized from the teacher's hnsw search heap.
//
// Distance ties at the root are broken by TrainIndex, larger first, so
// that among equal-distance entries it is always the latest training
// index that gets evicted first, keeping the earlier index — matching
// the ascending-training-index tie-break rule (spec.md §3, invariant 3 of
// §8) even when tied distances straddle the k_max cutoff.
type neighborHeap []DistanceLabel

func (h neighborHeap) Len() int { return len(h) }
func (h neighborHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].TrainIndex > h[j].TrainIndex
}
func (h neighborHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x interface{}) { *h = append(*h, x.(DistanceLabel)) }
func (h *neighborHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Neighbors computes, for one test row at feature prefix length f, the
// kMax smallest (distance, label) pairs over every training row, in
// ascending distance order with ties broken by ascending training index
// (spec.md §3, §4.2 and invariant 3 of §8).
//
// This is C2: exactly one call per (test point, f) regardless of how many
// k values the sweep subsequently examines against the result.
func Neighbors(metric Metric, train *Matrix, trainLabels []uint32, testRow []float32, f, kMax int) []DistanceLabel {
	h := make(neighborHeap, 0, kMax)

	for i := 0; i < train.Rows; i++ {
		d := Distance(metric, train.Row(i), testRow, f)

		if h.Len() < kMax {
			heap.Push(&h, DistanceLabel{Distance: d, Label: trainLabels[i], TrainIndex: i})
			continue
		}

		// Strict less-than only: on an exact tie with the current worst
		// kept candidate, the earlier training index (already in the
		// heap) keeps its slot, per the ascending-training-index
		// tie-break rule.
		if d < h[0].Distance {
			heap.Pop(&h)
			heap.Push(&h, DistanceLabel{Distance: d, Label: trainLabels[i], TrainIndex: i})
		}
	}

	out := make([]DistanceLabel, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].TrainIndex < out[j].TrainIndex
	})
	return out
}

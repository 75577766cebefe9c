package coordinator

import (
	"context"

	"github.com/efficomp/hpknn/pkg/knn"
	"github.com/efficomp/hpknn/pkg/transport"
)

// EnergyGate is consulted before asking the master for a new chunk (spec
// §4.8): when the current pricing window is not both cheap and
// under-average, the worker blocks here until it is. A nil gate never
// blocks, matching a run with the energy-aware gate disabled.
type EnergyGate interface {
	// BlockUntilCheap blocks until the oracle reports a cheap,
	// under-average window, or ctx is done.
	BlockUntilCheap(ctx context.Context) error
}

// Scorer evaluates one chunk of f-values and returns the best Candidate
// found within it. RunWorker takes this as a parameter so the protocol
// loop is testable against a fake scorer, independent of pkg/knn.
type Scorer func(f0, f1 int) knn.Candidate

// RunWorker drives the worker side of the heterogeneous coordinator
// protocol (spec §4.6.4) to completion: repeatedly ASK for a chunk, score
// it, report RESULT, until STOP is received, then send DONE and return.
//
// chunkSize and maxFeatures must match the master's, so both sides agree
// on where each chunk (identified only by its base f0 in the JOB message)
// ends.
func RunWorker(ctx context.Context, tp transport.Transport, chunkSize, maxFeatures int, gate EnergyGate, score Scorer) error {
	master := 0

	for {
		if gate != nil {
			if err := gate.BlockUntilCheap(ctx); err != nil {
				return err
			}
		}

		if err := tp.Send(ctx, master, int(TagASK), nil); err != nil {
			return err
		}

		env, err := tp.Receive(ctx, master, transport.AnyTag)
		if err != nil {
			return err
		}

		switch Tag(env.Tag) {
		case TagJOB:
			f0 := int(env.Body[0])
			f1 := chunkEnd(f0, chunkSize, maxFeatures)
			best := score(f0, f1)

			if err := tp.Send(ctx, master, int(TagRESULT), []uint64{
				uint64(best.K), uint64(best.F), uint64(best.Correct),
			}); err != nil {
				return err
			}

		case TagSTOP:
			return tp.Send(ctx, master, int(TagDONE), nil)
		}
	}
}

// ChunkScorer builds a Scorer that sweeps every f in [f0, f1] against
// train/test with C4 (pkg/knn.Sweep) and folds the per-f best Candidate
// under Candidate ordering, exactly as the homogeneous coordinator (C5)
// does for its statically assigned f-set (pkg/knn.RunHomogeneous).
func ChunkScorer(metric knn.Metric, train *knn.Matrix, trainLabels []uint32, test *knn.Matrix, testLabels []uint32, kMin, kMax, numWorkers int) Scorer {
	return func(f0, f1 int) knn.Candidate {
		var best knn.Candidate
		haveBest := false

		for f := f0; f <= f1; f++ {
			correct := knn.Sweep(metric, train, trainLabels, test, testLabels, f, kMin, kMax, numWorkers)
			cand := knn.BestInSweep(f, kMin, correct)
			best, haveBest = knn.Reduce(best, cand, haveBest)
		}
		return best
	}
}

package coordinator

import (
	"context"

	"github.com/efficomp/hpknn/pkg/knn"
	"github.com/efficomp/hpknn/pkg/observability"
	"github.com/efficomp/hpknn/pkg/transport"
)

// masterState is the drain state machine of spec §4.6.3.
type masterState int

const (
	stateServing masterState = iota
	stateDraining
	stateTerminated
)

// RunMaster drives the master side of the heterogeneous coordinator
// protocol (spec §4.6.3) to completion and returns the global best
// Candidate across every chunk, folded with Candidate ordering
// (spec §3, pkg/knn.Better) rather than a plain max — a RESULT is folded
// into the running best the instant it arrives, in SERVING or DRAINING
// alike, so the reduction is commutative across arbitrary arrival order
// (spec §4.6.5).
//
// numWorkers is the number of worker ranks (ranks 1..numWorkers); chunkSize
// and maxFeatures determine the chunk sequence handed out via JOB. metrics
// may be nil, in which case no observability counters are touched.
func RunMaster(ctx context.Context, tp transport.Transport, numWorkers, chunkSize, maxFeatures int, metrics *observability.Metrics) (knn.Candidate, error) {
	chunks := chunkBases(chunkSize, maxFeatures)
	nextChunk := 0

	state := stateServing
	stopped := make(map[int]bool, numWorkers)
	drained := 0

	var best knn.Candidate
	haveBest := false

	if metrics != nil {
		metrics.CoordinatorWorkersActive.Set(float64(numWorkers))
	}

	for state != stateTerminated {
		env, err := tp.Receive(ctx, transport.AnyRank, transport.AnyTag)
		if err != nil {
			return best, err
		}

		switch Tag(env.Tag) {
		case TagASK:
			if state == stateServing && nextChunk < len(chunks) {
				f0 := chunks[nextChunk]
				nextChunk++
				if err := tp.Send(ctx, env.Source, int(TagJOB), []uint64{uint64(f0)}); err != nil {
					return best, err
				}
			} else {
				if !stopped[env.Source] {
					stopped[env.Source] = true
					if state == stateServing {
						state = stateDraining
					}
					if metrics != nil {
						metrics.CoordinatorWorkersActive.Set(float64(numWorkers - len(stopped)))
					}
				}
				if err := tp.Send(ctx, env.Source, int(TagSTOP), nil); err != nil {
					return best, err
				}
			}

		case TagRESULT:
			cand := knn.Candidate{
				K:       int(env.Body[0]),
				F:       int(env.Body[1]),
				Correct: int(env.Body[2]),
			}
			best, haveBest = knn.Reduce(best, cand, haveBest)
			if metrics != nil {
				metrics.RecordChunkCompleted(state == stateDraining)
			}

		case TagDONE:
			drained++
			if drained == numWorkers {
				state = stateTerminated
			}
		}
	}

	return best, nil
}

// chunkBases returns the base f-value of every chunk in order: 1, 1+
// chunkSize, 1+2*chunkSize, ..., up to and including maxFeatures (spec §8
// scenario 6's chunk boundary example, where F_max=10 and chunkSize=3
// yields bases 1, 4, 7, 10).
func chunkBases(chunkSize, maxFeatures int) []int {
	var bases []int
	for f0 := 1; f0 <= maxFeatures; f0 += chunkSize {
		bases = append(bases, f0)
	}
	return bases
}

// chunkEnd returns the inclusive upper bound of the chunk starting at f0,
// capped to maxFeatures.
func chunkEnd(f0, chunkSize, maxFeatures int) int {
	end := f0 + chunkSize - 1
	if end > maxFeatures {
		end = maxFeatures
	}
	return end
}

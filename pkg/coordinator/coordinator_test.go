package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/efficomp/hpknn/pkg/knn"
	"github.com/efficomp/hpknn/pkg/transport"
	"github.com/efficomp/hpknn/pkg/transport/chantransport"
)

// fakeScore reports f itself as the "correct" count, so the global best is
// predictable: the largest f in range wins (Better favors higher Correct).
func fakeScore(f0, f1 int) knn.Candidate {
	best := knn.Candidate{K: 1, F: f0, Correct: f0}
	for f := f0 + 1; f <= f1; f++ {
		cand := knn.Candidate{K: 1, F: f, Correct: f}
		if knn.Better(cand, best) {
			best = cand
		}
	}
	return best
}

func TestMasterWorkerProtocolCoversEveryChunk(t *testing.T) {
	const numWorkers = 3
	const chunkSize = 3
	const maxFeatures = 10

	w := chantransport.NewWorld(numWorkers + 1)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var masterBest knn.Candidate
	var masterErr error

	var seenMu sync.Mutex
	seen := make(map[int]int)
	recordingScore := func(f0, f1 int) knn.Candidate {
		seenMu.Lock()
		seen[f0]++
		seenMu.Unlock()
		return fakeScore(f0, f1)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		masterBest, masterErr = RunMaster(ctx, w.Rank(0), numWorkers, chunkSize, maxFeatures, nil)
	}()

	for r := 1; r <= numWorkers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			RunWorker(ctx, w.Rank(r), chunkSize, maxFeatures, nil, recordingScore)
		}(r)
	}

	wg.Wait()

	if masterErr != nil {
		t.Fatalf("master error: %v", masterErr)
	}
	bases := chunkBases(chunkSize, maxFeatures)
	if len(seen) != len(bases) {
		t.Errorf("expected %d distinct chunks scored, got %d: %v", len(bases), len(seen), seen)
	}
	for _, f0 := range bases {
		if seen[f0] != 1 {
			t.Errorf("chunk at f0=%d scored %d times, want exactly 1", f0, seen[f0])
		}
	}
	// Largest f is maxFeatures, so the global best candidate's F must be
	// maxFeatures with Correct == maxFeatures.
	if masterBest.F != maxFeatures || masterBest.Correct != maxFeatures {
		t.Errorf("expected best candidate at f=%d, got %+v", maxFeatures, masterBest)
	}
}

func TestChunkBasesCoverBoundaryExample(t *testing.T) {
	// spec §8 scenario 6: F_max=10, chunkSize=3 -> bases 1,4,7,10.
	got := chunkBases(3, 10)
	want := []int{1, 4, 7, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d: got base %d, want %d", i, got[i], want[i])
		}
	}
}

func TestChunkEndCapsAtMaxFeatures(t *testing.T) {
	if got := chunkEnd(10, 3, 10); got != 10 {
		t.Errorf("expected last chunk capped at 10, got %d", got)
	}
	if got := chunkEnd(1, 3, 10); got != 3 {
		t.Errorf("expected first chunk to end at 3, got %d", got)
	}
}

func TestMasterAcceptsLateResultDuringDraining(t *testing.T) {
	// A single worker, single chunk: the worker asks again before reporting,
	// so the master answers STOP and moves to DRAINING; only then does the
	// worker's RESULT arrive. Verify the master still folds a RESULT that
	// arrives after it observed no more chunks remain.
	w := chantransport.NewWorld(2)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	masterDone := make(chan knn.Candidate, 1)
	go func() {
		best, err := RunMaster(ctx, w.Rank(0), 1, 5, 5, nil)
		if err != nil {
			t.Errorf("master error: %v", err)
		}
		masterDone <- best
	}()

	worker := w.Rank(1)
	// ASK -> JOB(1)
	worker.Send(ctx, 0, int(TagASK), nil)
	env, err := worker.Receive(ctx, 0, transport.AnyTag)
	if err != nil || Tag(env.Tag) != TagJOB {
		t.Fatalf("expected JOB, got %+v err=%v", env, err)
	}

	// ASK again -> STOP (no chunks remain); the master is now DRAINING.
	worker.Send(ctx, 0, int(TagASK), nil)
	env, err = worker.Receive(ctx, 0, transport.AnyTag)
	if err != nil || Tag(env.Tag) != TagSTOP {
		t.Fatalf("expected STOP, got %+v err=%v", env, err)
	}

	// Report the late RESULT for the chunk, then DONE.
	worker.Send(ctx, 0, int(TagRESULT), []uint64{3, 1, 4})
	worker.Send(ctx, 0, int(TagDONE), nil)

	select {
	case best := <-masterDone:
		if best.Correct != 4 || best.F != 1 || best.K != 3 {
			t.Errorf("expected result folded into best, got %+v", best)
		}
	case <-ctx.Done():
		t.Fatal("master did not terminate in time")
	}
}

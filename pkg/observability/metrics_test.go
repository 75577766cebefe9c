package observability

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	// Create metrics once for all subtests
	m := NewMetrics()

	t.Run("NewMetrics", func(t *testing.T) {
		if m == nil {
			t.Fatal("NewMetrics returned nil")
		}

		if m.SweepDuration == nil {
			t.Error("SweepDuration not initialized")
		}
		if m.CandidatesEvaluated == nil {
			t.Error("CandidatesEvaluated not initialized")
		}
		if m.RequestsTotal == nil {
			t.Error("RequestsTotal not initialized")
		}
		if m.CacheHits == nil {
			t.Error("CacheHits not initialized")
		}
	})

	t.Run("RecordSweep", func(t *testing.T) {
		m.RecordSweep("euclidean", 50*time.Millisecond)
		m.RecordSweep("manhattan", 75*time.Millisecond)

		for i := 1; i <= 10; i++ {
			m.RecordSweep("euclidean", time.Duration(i)*time.Millisecond)
		}
	})

	t.Run("RecordCandidate", func(t *testing.T) {
		m.RecordCandidate(0.5)
		m.RecordCandidate(0.75)
		m.RecordCandidate(0.9)
	})

	t.Run("RecordChunkAssignedAndCompleted", func(t *testing.T) {
		m.RecordChunkAssigned()
		m.RecordChunkAssigned()
		m.RecordChunkCompleted(false)
		m.RecordChunkCompleted(true)
	})

	t.Run("RecordEnergyPoll", func(t *testing.T) {
		m.RecordEnergyPoll("cheap", true)
		m.RecordEnergyPoll("expensive", false)
		m.RecordEnergyPoll("error", false)
		m.RecordEnergySleep(90 * time.Minute)
	})

	t.Run("RecordRequest", func(t *testing.T) {
		duration := 100 * time.Millisecond
		m.RecordRequest("RunJob", "success", duration)
		m.RecordRequest("ListJobs", "error", 50*time.Millisecond)

		methods := []string{"RunJob", "ListJobs", "GetJob"}
		statuses := []string{"success", "error", "timeout"}
		for _, method := range methods {
			for _, status := range statuses {
				m.RecordRequest(method, status, duration)
			}
		}
	})

	t.Run("RecordError", func(t *testing.T) {
		m.RecordError("RunJob", "validation_error")
		m.RecordError("GetJob", "not_found")
	})

	t.Run("CacheMetrics", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			m.RecordCacheHit()
		}
		for i := 0; i < 50; i++ {
			m.RecordCacheMiss()
		}
		m.UpdateCacheSize(100)
		m.UpdateCacheSize(500)
	})

	t.Run("JobMetrics", func(t *testing.T) {
		m.UpdateJobsTotal(5)
		m.UpdateJobsTotal(10)
		m.UpdateJobBoundsUsage("iris-sweep", "tuples", 0.5)
		m.UpdateJobBoundsUsage("iris-sweep", "features", 0.8)
	})

	t.Run("SystemMetrics", func(t *testing.T) {
		m.UpdateGoroutineCount(100)
		m.UpdateMemoryUsage(1024 * 1024 * 512)

		for i := 0; i < 10; i++ {
			m.UpdateGoroutineCount(100 + i*10)
			m.UpdateMemoryUsage(uint64(1024 * 1024 * (500 + i*100)))
		}
	})
}

func TestRecordCandidateTracksMaxAccuracy(t *testing.T) {
	m := NewMetrics()

	m.RecordCandidate(0.5)
	m.RecordCandidate(0.9)
	m.RecordCandidate(0.3)

	m.bestAccMu.Lock()
	best := m.bestAcc
	m.bestAccMu.Unlock()

	if best != 0.9 {
		t.Errorf("expected best accuracy to remain 0.9, got %v", best)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	m := NewMetrics()
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(i int) {
			for j := 0; j < 10; j++ {
				m.RecordCandidate(float64(i) / 10)
				m.RecordChunkCompleted(j%2 == 0)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkRecordSweep(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}

func BenchmarkRecordCandidate(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}

package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the hyperparameter-search run.
type Metrics struct {
	// Sweep metrics (C4/C5/C7)
	SweepDuration       *prometheus.HistogramVec
	CandidatesEvaluated prometheus.Counter
	BestAccuracy        prometheus.Gauge

	// Coordinator metrics (C6)
	ChunksAssigned           prometheus.Counter
	ChunksCompleted          prometheus.Counter
	CoordinatorWorkersActive prometheus.Gauge
	LateResultsAccepted      prometheus.Counter

	// Energy gate metrics (C8)
	EnergyGateSleepSeconds prometheus.Counter
	EnergyGatePolls        *prometheus.CounterVec
	EnergyGateCheap        prometheus.Gauge

	// Job metrics (admin surface)
	JobsTotal      prometheus.Gauge
	JobBoundsUsage *prometheus.GaugeVec

	// Result cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// Admin request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge

	bestAccMu  sync.Mutex
	bestAccSet bool
	bestAcc    float64
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		SweepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hpknn_sweep_duration_seconds",
				Help:    "Duration of one whole (k, f) search by metric kernel",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"metric"},
		),
		CandidatesEvaluated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_candidates_evaluated_total",
				Help: "Total number of (k, f) candidates evaluated",
			},
		),
		BestAccuracy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_best_accuracy",
				Help: "Accuracy of the best (k*, f*) candidate found so far",
			},
		),

		ChunksAssigned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_coordinator_chunks_assigned_total",
				Help: "Total number of f-axis chunks handed out via JOB",
			},
		),
		ChunksCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_coordinator_chunks_completed_total",
				Help: "Total number of RESULT messages received by the master",
			},
		),
		CoordinatorWorkersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_coordinator_workers_active",
				Help: "Number of workers that have not yet been sent STOP",
			},
		),
		LateResultsAccepted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_coordinator_late_results_total",
				Help: "Total number of RESULT messages accepted while DRAINING",
			},
		),

		EnergyGateSleepSeconds: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_energy_gate_sleep_seconds_total",
				Help: "Cumulative seconds a worker has spent sleeping due to an expensive energy window",
			},
		),
		EnergyGatePolls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpknn_energy_gate_polls_total",
				Help: "Total number of oracle polls by outcome",
			},
			[]string{"outcome"},
		),
		EnergyGateCheap: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_energy_gate_cheap",
				Help: "1 if the current energy window is cheap and under average, else 0",
			},
		),

		JobsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_jobs_total",
				Help: "Total number of registered jobs",
			},
		),
		JobBoundsUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hpknn_job_bounds_usage",
				Help: "Job resource usage as a fraction of its configured bound",
			},
			[]string{"job", "resource"},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_result_cache_hits_total",
				Help: "Total number of result cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpknn_result_cache_misses_total",
				Help: "Total number of result cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_result_cache_size",
				Help: "Current number of entries in the result cache",
			},
		),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpknn_admin_requests_total",
				Help: "Total number of admin REST/gRPC requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hpknn_admin_request_duration_seconds",
				Help:    "Admin request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpknn_admin_request_errors_total",
				Help: "Total number of admin request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hpknn_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
	}

	return m
}

// RecordSweep records the duration of one completed (k, f) search.
func (m *Metrics) RecordSweep(metric string, duration time.Duration) {
	m.SweepDuration.WithLabelValues(metric).Observe(duration.Seconds())
}

// RecordCandidate records one (k, f) candidate evaluation and updates the
// running best-accuracy gauge if it improved.
func (m *Metrics) RecordCandidate(accuracy float64) {
	m.CandidatesEvaluated.Inc()

	m.bestAccMu.Lock()
	improved := !m.bestAccSet || accuracy > m.bestAcc
	if improved {
		m.bestAccSet = true
		m.bestAcc = accuracy
	}
	m.bestAccMu.Unlock()

	if improved {
		m.BestAccuracy.Set(accuracy)
	}
}

// RecordChunkAssigned increments the chunks-assigned counter.
func (m *Metrics) RecordChunkAssigned() { m.ChunksAssigned.Inc() }

// RecordChunkCompleted records a RESULT arriving, late or not.
func (m *Metrics) RecordChunkCompleted(late bool) {
	m.ChunksCompleted.Inc()
	if late {
		m.LateResultsAccepted.Inc()
	}
}

// RecordEnergyPoll records one oracle poll outcome ("cheap" or
// "expensive"/"error") and updates the current-window gauge.
func (m *Metrics) RecordEnergyPoll(outcome string, cheap bool) {
	m.EnergyGatePolls.WithLabelValues(outcome).Inc()
	if cheap {
		m.EnergyGateCheap.Set(1)
	} else {
		m.EnergyGateCheap.Set(0)
	}
}

// RecordEnergySleep adds to the cumulative energy-gate sleep counter.
func (m *Metrics) RecordEnergySleep(d time.Duration) {
	m.EnergyGateSleepSeconds.Add(d.Seconds())
}

// RecordCacheHit records a result-cache hit.
func (m *Metrics) RecordCacheHit() { m.CacheHits.Inc() }

// RecordCacheMiss records a result-cache miss.
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// UpdateCacheSize sets the current result-cache size.
func (m *Metrics) UpdateCacheSize(size int) { m.CacheSize.Set(float64(size)) }

// UpdateJobsTotal sets the current registered-job count.
func (m *Metrics) UpdateJobsTotal(count int) { m.JobsTotal.Set(float64(count)) }

// UpdateJobBoundsUsage sets a job's usage fraction for one bounded
// resource ("tuples", "features", "classes").
func (m *Metrics) UpdateJobBoundsUsage(job, resource string, fraction float64) {
	m.JobBoundsUsage.WithLabelValues(job, resource).Set(fraction)
}

// RecordRequest records an admin request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an admin request error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// UpdateGoroutineCount updates goroutine count.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates memory usage.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efficomp/hpknn/pkg/jobs"
	"github.com/efficomp/hpknn/pkg/observability"
	"github.com/efficomp/hpknn/pkg/resultcache"
)

// Runner executes a job's configured sweep and returns its best candidate
// and score. cmd/hpknn supplies the concrete implementation at startup.
type Runner func(job *jobs.Job) (resultcache.Result, error)

// Handler serves the admin surface: job inspection, run triggering and
// cached-result lookup over the jobs.Registry and resultcache.LRUCache
// built by cmd/hpknn.
type Handler struct {
	registry *jobs.Registry
	cache    *resultcache.LRUCache
	run      Runner
	metrics  *observability.Metrics
}

// NewHandler creates the admin handler. metrics may be nil.
func NewHandler(registry *jobs.Registry, cache *resultcache.LRUCache, run Runner, metrics *observability.Metrics) *Handler {
	return &Handler{registry: registry, cache: cache, run: run, metrics: metrics}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// ListJobs handles GET /jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobList := h.registry.ListJobs()
	if h.metrics != nil {
		h.metrics.UpdateJobsTotal(len(jobList))
	}
	writeJSON(w, jobList, http.StatusOK)
}

// GetJob handles GET /jobs/{name}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/jobs/")
	name = strings.TrimSuffix(name, "/run")
	if name == "" {
		writeError(w, "job name required", http.StatusBadRequest)
		return
	}

	job, err := h.registry.GetJob(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, job, http.StatusOK)
}

// RunJob handles POST /jobs/{name}/run: enforces the job's rate limit,
// executes its configured sweep, and caches the result under a fresh run
// key. The run key is returned so a client can look the result up again
// without re-running the sweep.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/run")
	if name == "" {
		writeError(w, "job name required", http.StatusBadRequest)
		return
	}

	job, err := h.registry.GetJob(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	if err := job.CheckRateLimit(); err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	result, err := h.run(job)
	if err != nil {
		writeError(w, fmt.Sprintf("run failed: %v", err), http.StatusInternalServerError)
		return
	}

	runID := job.RecordRun()
	key := resultcache.RunKey(runID)
	h.cache.Put(key, result)
	if h.metrics != nil {
		h.metrics.UpdateCacheSize(h.cache.Size())
	}

	writeJSON(w, map[string]interface{}{
		"runId": runID,
		"best":  result.Best,
		"score": result.Score,
	}, http.StatusOK)
}

// GetResult handles GET /runs/{runId}, returning a previously cached
// sweep outcome without re-running it.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/runs/")
	if runID == "" {
		writeError(w, "run id required", http.StatusBadRequest)
		return
	}

	result, ok := h.cache.Get(resultcache.RunKey(runID))
	if h.metrics != nil {
		if ok {
			h.metrics.RecordCacheHit()
		} else {
			h.metrics.RecordCacheMiss()
		}
	}
	if !ok {
		writeError(w, "run not found or expired", http.StatusNotFound)
		return
	}
	writeJSON(w, result, http.StatusOK)
}

// Metrics handles GET /metrics, exposing the Prometheus registry.
func Metrics() http.Handler {
	return promhttp.Handler()
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

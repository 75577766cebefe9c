// Package jobs tracks named hyperparameter-search jobs and enforces
// per-job resource bounds, adapted from pkg/tenant's tenant/quota/usage
// model: Tenant becomes Job, a vector-count/storage quota becomes dataset
// shape bounds, and per-tenant namespaces become job names.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bounds caps the dataset shape and run rate a Job will accept, the
// sweep-domain equivalent of pkg/tenant's vector/storage/dimension quota.
type Bounds struct {
	MaxTuples      int64 // Maximum training+test row count
	MaxFeatures    int   // Maximum column count (before any MRMR prefix)
	MaxClasses     int   // Maximum distinct label count
	RateLimitQPS   int   // Runs per second limit, 0 or negative disables
}

// Usage tracks a Job's observed activity.
type Usage struct {
	SweepsRun     int64
	LastRunAt     time.Time
	runCount      int64
	lastRunWindow time.Time
}

// Job is one named hyperparameter-search configuration under management:
// its resource bounds, its usage history, and its most recent run IDs.
type Job struct {
	ID        string
	Name      string
	Bounds    Bounds
	Usage     Usage
	CreatedAt time.Time
	UpdatedAt time.Time
	IsActive  bool
	mu        sync.RWMutex
}

// Registry handles job lifecycle and bound enforcement.
type Registry struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// CreateJob registers a new job under name with the given bounds.
func (r *Registry) CreateJob(name string, bounds Bounds) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; exists {
		return nil, fmt.Errorf("job '%s' already exists", name)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Bounds:    bounds,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		IsActive:  true,
	}
	r.jobs[name] = job
	return job, nil
}

// GetJob retrieves a job by name.
func (r *Registry) GetJob(name string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job '%s' not found", name)
	}
	return job, nil
}

// DeleteJob removes a job.
func (r *Registry) DeleteJob(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; !exists {
		return fmt.Errorf("job '%s' not found", name)
	}
	delete(r.jobs, name)
	return nil
}

// ListJobs returns every registered job.
func (r *Registry) ListJobs() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CheckDatasetBounds reports an error if tuples/features/classes exceed
// the job's configured Bounds.
func (j *Job) CheckDatasetBounds(tuples int64, features, classes int) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.Bounds.MaxTuples > 0 && tuples > j.Bounds.MaxTuples {
		return fmt.Errorf("tuple bound exceeded: requested=%d, max=%d", tuples, j.Bounds.MaxTuples)
	}
	if j.Bounds.MaxFeatures > 0 && features > j.Bounds.MaxFeatures {
		return fmt.Errorf("feature bound exceeded: requested=%d, max=%d", features, j.Bounds.MaxFeatures)
	}
	if j.Bounds.MaxClasses > 0 && classes > j.Bounds.MaxClasses {
		return fmt.Errorf("class bound exceeded: requested=%d, max=%d", classes, j.Bounds.MaxClasses)
	}
	return nil
}

// CheckRateLimit reports an error if this job has already run
// RateLimitQPS times within the current one-second window.
func (j *Job) CheckRateLimit() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Bounds.RateLimitQPS <= 0 {
		return nil
	}

	now := time.Now()
	if now.Sub(j.Usage.lastRunWindow) < time.Second {
		if j.Usage.runCount >= int64(j.Bounds.RateLimitQPS) {
			return fmt.Errorf("rate limit exceeded: %d runs per second (max: %d)", j.Usage.runCount, j.Bounds.RateLimitQPS)
		}
	} else {
		j.Usage.runCount = 0
		j.Usage.lastRunWindow = now
	}

	j.Usage.runCount++
	return nil
}

// RecordRun marks one completed sweep run, returning a fresh run ID.
func (j *Job) RecordRun() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Usage.SweepsRun++
	j.Usage.LastRunAt = time.Now()
	j.UpdatedAt = time.Now()
	return uuid.NewString()
}

// SetActive toggles the job's active status.
func (j *Job) SetActive(active bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.IsActive = active
	j.UpdatedAt = time.Now()
}

// DefaultBounds is a permissive default: no dataset bound, 100 runs/sec.
func DefaultBounds() Bounds {
	return Bounds{
		MaxTuples:    0,
		MaxFeatures:  0,
		MaxClasses:   0,
		RateLimitQPS: 100,
	}
}

// UnlimitedBounds disables every bound check entirely.
func UnlimitedBounds() Bounds {
	return Bounds{}
}

package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrJobBusy is returned when an owner already has an unclaimed job.
var ErrJobBusy = errors.New("owner already has a job")

// Job is long-running leaf work that runs off the tick goroutine. Each
// owner (an animal) has at most one current job until it is forgotten.
type Job struct {
	ID        string
	Owner     string
	Type      string
	Status    JobStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time

	cancel context.CancelFunc
}

type JobManager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	current map[string]*Job
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs:    make(map[string]*Job),
		current: make(map[string]*Job),
	}
}

// StartJob runs action in its own goroutine. The context passed to action is
// cancelled by Cancel.
func (jm *JobManager) StartJob(owner, jobType string, action func(ctx context.Context) error) (Job, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if _, busy := jm.current[owner]; busy {
		return Job{}, ErrJobBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Owner:     owner,
		Type:      jobType,
		Status:    JobStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
		cancel:    cancel,
	}
	jm.jobs[job.ID] = job
	jm.current[owner] = job

	go func() {
		err := action(ctx)
		cancel()
		jm.mu.Lock()
		defer jm.mu.Unlock()

		if job.Status == JobStatusCancelled {
			return
		}
		job.UpdatedAt = time.Now()
		if err != nil {
			job.Status = JobStatusFailed
			job.Error = err.Error()
		} else {
			job.Status = JobStatusSuccess
		}
	}()
	return *job, nil
}

// Cancel stops a running job. It reports false for unknown or finished jobs.
func (jm *JobManager) Cancel(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, ok := jm.jobs[id]
	if !ok || job.Status != JobStatusRunning {
		return false
	}
	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now()
	job.cancel()
	return true
}

// CancelAll cancels every running job, used on shutdown.
func (jm *JobManager) CancelAll() {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	for _, job := range jm.jobs {
		if job.Status == JobStatusRunning {
			job.Status = JobStatusCancelled
			job.UpdatedAt = time.Now()
			job.cancel()
		}
	}
}

func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// CurrentFor returns the owner's current job, finished or not.
func (jm *JobManager) CurrentFor(owner string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.current[owner]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Forget drops a job once its owner has consumed the result. A running job
// is cancelled first.
func (jm *JobManager) Forget(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, ok := jm.jobs[id]
	if !ok {
		return
	}
	if job.Status == JobStatusRunning {
		job.Status = JobStatusCancelled
		job.cancel()
	}
	delete(jm.jobs, id)
	if jm.current[job.Owner] == job {
		delete(jm.current, job.Owner)
	}
}

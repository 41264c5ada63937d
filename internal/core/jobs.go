package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a background job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobFunc is the work of a background job. Its result is reported by
// Status once the job finishes.
type JobFunc func(ctx context.Context) (any, error)

// Job is a snapshot of a background job.
type Job struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      JobState   `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	UserError  string     `json:"user_error,omitempty"`

	err error
}

// Err returns the job's failure, if any.
func (j Job) Err() error { return j.err }

type jobEntry struct {
	mu   sync.Mutex
	job  Job
	done chan struct{}
}

func (e *jobEntry) snapshot() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

// DefaultJobRetention is how long finished jobs stay queryable.
const DefaultJobRetention = time.Hour

// Jobs runs long imports and exports off the request path. A job cannot be
// cancelled once started; it ends on completion, error, or timeout.
type Jobs struct {
	limiter   *JobLimiter
	timeout   time.Duration
	retention time.Duration

	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

// NewJobs returns a job runner bounded by limiter. Each job runs under
// timeout; zero means no timeout.
func NewJobs(limiter *JobLimiter, timeout time.Duration) *Jobs {
	return &Jobs{
		limiter:   limiter,
		timeout:   timeout,
		retention: DefaultJobRetention,
		jobs:      make(map[string]*jobEntry),
	}
}

// Start waits for a free slot, then runs fn in the background and returns
// the job id. Values of ctx (such as the audit actor) reach fn, but ctx's
// cancellation does not.
func (j *Jobs) Start(ctx context.Context, kind string, fn JobFunc) (string, error) {
	if err := j.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	entry := &jobEntry{
		job: Job{
			ID:        uuid.NewString(),
			Kind:      kind,
			State:     JobRunning,
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}

	j.mu.Lock()
	j.evictExpiredLocked()
	j.jobs[entry.job.ID] = entry
	j.mu.Unlock()

	go j.run(context.WithoutCancel(ctx), entry, fn)
	return entry.job.ID, nil
}

func (j *Jobs) run(ctx context.Context, entry *jobEntry, fn JobFunc) {
	defer close(entry.done)
	defer j.limiter.Release()

	logger := slog.With("job_id", entry.job.ID, "kind", entry.job.Kind)
	logger.Info("job started")

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	result, err := func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return fn(ctx)
	}()

	now := time.Now()
	entry.mu.Lock()
	entry.job.FinishedAt = &now
	if err != nil {
		entry.job.State = JobFailed
		entry.job.Error = err.Error()
		entry.job.UserError = FormatUserError(err)
		entry.job.err = err
	} else {
		entry.job.State = JobSucceeded
		entry.job.Result = result
	}
	entry.mu.Unlock()

	if err != nil {
		logger.Error("job failed", "error", err, "duration_ms", now.Sub(entry.job.StartedAt).Milliseconds())
		return
	}
	logger.Info("job completed", "duration_ms", now.Sub(entry.job.StartedAt).Milliseconds())
}

// Status returns the current state of job id, or ErrNotFound.
func (j *Jobs) Status(id string) (Job, error) {
	j.mu.RLock()
	entry, ok := j.jobs[id]
	j.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return entry.snapshot(), nil
}

// Wait blocks until job id finishes or ctx is done.
func (j *Jobs) Wait(ctx context.Context, id string) (Job, error) {
	j.mu.RLock()
	entry, ok := j.jobs[id]
	j.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	select {
	case <-entry.done:
		return entry.snapshot(), nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Active returns the number of running jobs.
func (j *Jobs) Active() int {
	return j.limiter.ActiveCount()
}

// WaitForDrain blocks until every running job has finished or ctx is done.
func (j *Jobs) WaitForDrain(ctx context.Context) error {
	return j.limiter.WaitForDrain(ctx)
}

func (j *Jobs) evictExpiredLocked() {
	cutoff := time.Now().Add(-j.retention)
	for id, e := range j.jobs {
		job := e.snapshot()
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(j.jobs, id)
		}
	}
}

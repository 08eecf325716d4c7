package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"trend-launch/internal/domain"
)

// MemoryJobQueue — очередь в памяти процесса для тестов и dev-окружения.
type MemoryJobQueue struct {
	mu    sync.Mutex
	seq   int64
	jobs  map[string]*memoryJob
	clock domain.Clock
}

type memoryJob struct {
	job domain.AutomationJob
	seq int64
}

var _ domain.JobQueue = (*MemoryJobQueue)(nil)

// NewMemoryJobQueue создаёт пустую очередь.
func NewMemoryJobQueue(clock domain.Clock) *MemoryJobQueue {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &MemoryJobQueue{jobs: make(map[string]*memoryJob), clock: clock}
}

// Enqueue реализует domain.JobQueue.
func (q *MemoryJobQueue) Enqueue(_ context.Context, job domain.AutomationJob) (domain.AutomationJob, error) {
	job, err := prepare(job, q.clock.Now())
	if err != nil {
		return domain.AutomationJob{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.jobs[job.ID] = &memoryJob{job: job, seq: q.seq}
	return job, nil
}

// Claim реализует domain.JobQueue.
func (q *MemoryJobQueue) Claim(_ context.Context) (domain.AutomationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var next *memoryJob
	for _, candidate := range q.jobs {
		if candidate.job.Status != domain.JobStatusQueued {
			continue
		}
		if next == nil || before(candidate, next) {
			next = candidate
		}
	}
	if next == nil {
		return domain.AutomationJob{}, domain.NotFoundf("no queued jobs")
	}
	now := q.clock.Now()
	next.job.Status = domain.JobStatusRunning
	next.job.StartedAt = &now
	return next.job, nil
}

func before(a, b *memoryJob) bool {
	if a.job.Priority != b.job.Priority {
		return a.job.Priority < b.job.Priority
	}
	if !a.job.EnqueuedAt.Equal(b.job.EnqueuedAt) {
		return a.job.EnqueuedAt.Before(b.job.EnqueuedAt)
	}
	return a.seq < b.seq
}

// Complete реализует domain.JobQueue.
func (q *MemoryJobQueue) Complete(_ context.Context, id string) error {
	return q.finish(id, domain.JobStatusCompleted, "")
}

// Fail реализует domain.JobQueue.
func (q *MemoryJobQueue) Fail(_ context.Context, id string, cause string) error {
	return q.finish(id, domain.JobStatusFailed, cause)
}

func (q *MemoryJobQueue) finish(id string, status domain.JobStatus, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.jobs[id]
	if !ok {
		return domain.NotFoundf("job %s", id)
	}
	if entry.job.Status != domain.JobStatusRunning {
		return domain.Preconditionf("job %s is %s", id, entry.job.Status)
	}
	now := q.clock.Now()
	entry.job.Status = status
	entry.job.LastError = cause
	entry.job.FinishedAt = &now
	return nil
}

// Cancel реализует domain.JobQueue.
func (q *MemoryJobQueue) Cancel(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.jobs[id]
	if !ok {
		return domain.NotFoundf("job %s", id)
	}
	if entry.job.Status != domain.JobStatusQueued && entry.job.Status != domain.JobStatusRunning {
		return domain.Preconditionf("job %s is %s", id, entry.job.Status)
	}
	now := q.clock.Now()
	entry.job.Status = domain.JobStatusCancelled
	entry.job.FinishedAt = &now
	return nil
}

// CancelByLaunch реализует domain.JobQueue.
func (q *MemoryJobQueue) CancelByLaunch(_ context.Context, launchID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock.Now()
	cancelled := 0
	for _, entry := range q.jobs {
		if entry.job.LaunchID != launchID || entry.job.Status != domain.JobStatusQueued {
			continue
		}
		entry.job.Status = domain.JobStatusCancelled
		entry.job.FinishedAt = &now
		cancelled++
	}
	return cancelled, nil
}

// Get реализует domain.JobQueue.
func (q *MemoryJobQueue) Get(_ context.Context, id string) (domain.AutomationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.jobs[id]
	if !ok {
		return domain.AutomationJob{}, domain.NotFoundf("job %s", id)
	}
	return entry.job, nil
}

// List реализует domain.JobQueue.
func (q *MemoryJobQueue) List(_ context.Context, filter domain.JobFilter) ([]domain.AutomationJob, error) {
	q.mu.Lock()
	entries := make([]*memoryJob, 0, len(q.jobs))
	for _, entry := range q.jobs {
		if filter.LaunchID != "" && entry.job.LaunchID != filter.LaunchID {
			continue
		}
		if filter.Status != "" && entry.job.Status != filter.Status {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}
	q.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]domain.AutomationJob, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.job)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func prepare(job domain.AutomationJob, now time.Time) (domain.AutomationJob, error) {
	if job.JobType == "" {
		return domain.AutomationJob{}, domain.Validationf("job type is empty")
	}
	if job.ID == "" {
		job.ID = newJobID()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = now
	}
	if len(job.Payload) == 0 {
		job.Payload = []byte("{}")
	}
	job.Status = domain.JobStatusQueued
	job.StartedAt = nil
	job.FinishedAt = nil
	return job, nil
}

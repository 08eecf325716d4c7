package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

const jobColumns = `id, launch_id, job_type, job_priority, job_payload, status, last_error, enqueued_at, started_at, finished_at`

// PostgresJobQueue хранит задачи в таблице automation_jobs и выдаёт их через FOR UPDATE SKIP LOCKED.
type PostgresJobQueue struct {
	pool  *pgxpool.Pool
	clock domain.Clock
}

var _ domain.JobQueue = (*PostgresJobQueue)(nil)

// NewPostgresJobQueue создаёт очередь поверх пула.
func NewPostgresJobQueue(pool *pgxpool.Pool, clock domain.Clock) *PostgresJobQueue {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &PostgresJobQueue{pool: pool, clock: clock}
}

func (q *PostgresJobQueue) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Enqueue реализует domain.JobQueue.
func (q *PostgresJobQueue) Enqueue(ctx context.Context, job domain.AutomationJob) (domain.AutomationJob, error) {
	job, err := prepare(job, q.clock.Now())
	if err != nil {
		return domain.AutomationJob{}, err
	}
	ctx, cancel := q.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err = q.pool.Exec(ctx, `INSERT INTO automation_jobs (id, launch_id, job_type, job_priority, job_payload, status, enqueued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.LaunchID, string(job.JobType), job.Priority, []byte(job.Payload), string(job.Status), job.EnqueuedAt)
	metrics.ObserveNetworkRequest("postgres", "jobs_insert", "automation_jobs", start, err)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Claim реализует domain.JobQueue одним условным UPDATE.
func (q *PostgresJobQueue) Claim(ctx context.Context) (domain.AutomationJob, error) {
	ctx, cancel := q.connCtx(ctx)
	defer cancel()
	start := time.Now()
	row := q.pool.QueryRow(ctx, `UPDATE automation_jobs SET status = 'RUNNING', started_at = $1
WHERE id = (
    SELECT id FROM automation_jobs
    WHERE status = 'QUEUED'
    ORDER BY job_priority, enqueued_at, seq
    FOR UPDATE SKIP LOCKED
    LIMIT 1
) AND status = 'QUEUED'
RETURNING `+jobColumns, q.clock.Now())
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "jobs_claim", "automation_jobs", start, nil)
		return domain.AutomationJob{}, domain.NotFoundf("no queued jobs")
	}
	metrics.ObserveNetworkRequest("postgres", "jobs_claim", "automation_jobs", start, err)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete реализует domain.JobQueue.
func (q *PostgresJobQueue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, domain.JobStatusCompleted, "", domain.JobStatusRunning)
}

// Fail реализует domain.JobQueue.
func (q *PostgresJobQueue) Fail(ctx context.Context, id string, cause string) error {
	return q.finish(ctx, id, domain.JobStatusFailed, cause, domain.JobStatusRunning)
}

// Cancel реализует domain.JobQueue.
func (q *PostgresJobQueue) Cancel(ctx context.Context, id string) error {
	return q.finish(ctx, id, domain.JobStatusCancelled, "", domain.JobStatusQueued, domain.JobStatusRunning)
}

func (q *PostgresJobQueue) finish(ctx context.Context, id string, to domain.JobStatus, cause string, from ...domain.JobStatus) error {
	allowed := make([]string, 0, len(from))
	for _, status := range from {
		allowed = append(allowed, string(status))
	}
	ctx, cancel := q.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := q.pool.Exec(ctx, `UPDATE automation_jobs SET status = $2, last_error = $3, finished_at = $4
WHERE id = $1 AND status = ANY($5)`, id, string(to), cause, q.clock.Now(), allowed)
	metrics.ObserveNetworkRequest("postgres", "jobs_finish", "automation_jobs", start, err)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	current, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	return domain.Preconditionf("job %s is %s", id, current.Status)
}

// CancelByLaunch реализует domain.JobQueue.
func (q *PostgresJobQueue) CancelByLaunch(ctx context.Context, launchID string) (int, error) {
	ctx, cancel := q.connCtx(ctx)
	defer cancel()
	start := time.Now()
	tag, err := q.pool.Exec(ctx, `UPDATE automation_jobs SET status = 'CANCELLED', finished_at = $2
WHERE launch_id = $1 AND status = 'QUEUED'`, launchID, q.clock.Now())
	metrics.ObserveNetworkRequest("postgres", "jobs_cancel_by_launch", "automation_jobs", start, err)
	if err != nil {
		return 0, fmt.Errorf("cancel launch jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Get реализует domain.JobQueue.
func (q *PostgresJobQueue) Get(ctx context.Context, id string) (domain.AutomationJob, error) {
	ctx, cancel := q.connCtx(ctx)
	defer cancel()
	start := time.Now()
	job, err := scanJob(q.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM automation_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "jobs_get", "automation_jobs", start, nil)
		return domain.AutomationJob{}, domain.NotFoundf("job %s", id)
	}
	metrics.ObserveNetworkRequest("postgres", "jobs_get", "automation_jobs", start, err)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List реализует domain.JobQueue.
func (q *PostgresJobQueue) List(ctx context.Context, filter domain.JobFilter) ([]domain.AutomationJob, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	ctx, cancel := q.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := q.pool.Query(ctx, `SELECT `+jobColumns+` FROM automation_jobs
WHERE ($1 = '' OR launch_id = $1) AND ($2 = '' OR status = $2)
ORDER BY seq
LIMIT $3`, filter.LaunchID, string(filter.Status), limit)
	metrics.ObserveNetworkRequest("postgres", "jobs_list", "automation_jobs", start, err)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []domain.AutomationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (domain.AutomationJob, error) {
	var (
		job     domain.AutomationJob
		jobType string
		status  string
		payload []byte
	)
	err := row.Scan(&job.ID, &job.LaunchID, &jobType, &job.Priority, &payload, &status, &job.LastError, &job.EnqueuedAt, &job.StartedAt, &job.FinishedAt)
	if err != nil {
		return domain.AutomationJob{}, err
	}
	job.JobType = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = payload
	return job, nil
}

package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/collegebaseball/internal/store"
)

// Column order here is the order scanJob reads.
var jobFields = []string{
	"job_id", "job_type", "seasons", "divisions", "categories", "schools", "save",
	"status", "status_message", "progress_current", "progress_total", "failures",
	"last_error", "retry_count", "created_at", "updated_at", "started_at", "completed_at",
}

func selectJobs(alias string) string {
	if alias == "" {
		return strings.Join(jobFields, ", ")
	}
	out := make([]string, len(jobFields))
	for i, f := range jobFields {
		out[i] = alias + "." + f
	}
	return strings.Join(out, ", ")
}

var (
	insertJobSQL = `INSERT INTO backfill_jobs
	(job_id, job_type, seasons, divisions, categories, schools, save, status, status_message, progress_current, progress_total)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING ` + selectJobs("")

	// Terminal states also stamp completed_at.
	setStatusSQL = `UPDATE backfill_jobs SET
	status = $2::varchar, status_message = $3, last_error = $4, updated_at = NOW(),
	completed_at = CASE WHEN $2::varchar IN ('completed', 'failed', 'cancelled') THEN NOW() ELSE completed_at END
	WHERE job_id = $1`

	setProgressSQL = `UPDATE backfill_jobs SET
	progress_current = $2, progress_total = $3, status_message = $4, updated_at = NOW()
	WHERE job_id = $1`

	addFailureSQL = `UPDATE backfill_jobs SET failures = array_append(failures, $2), updated_at = NOW() WHERE job_id = $1`

	insertEventSQL = `INSERT INTO backfill_job_events (job_id, event_type, message) VALUES ($1, $2, $3)`

	requeueRunningSQL = `UPDATE backfill_jobs SET
	status = 'queued', status_message = 'Requeued on startup', retry_count = retry_count + 1,
	failures = '{}', updated_at = NOW()
	WHERE status = 'running'`

	// SKIP LOCKED lets several workers claim from the queue without blocking.
	claimNextSQL = `UPDATE backfill_jobs AS j SET
	status = 'running', status_message = 'Claimed by worker',
	started_at = COALESCE(j.started_at, NOW()), updated_at = NOW()
	WHERE j.job_id = (
		SELECT job_id FROM backfill_jobs WHERE status = 'queued'
		ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + selectJobs("j")

	jobByIDSQL   = `SELECT ` + selectJobs("") + ` FROM backfill_jobs WHERE job_id = $1`
	runningSQL   = `SELECT ` + selectJobs("") + ` FROM backfill_jobs WHERE status = 'running' ORDER BY started_at DESC LIMIT 1`
	recentJobSQL = `SELECT ` + selectJobs("") + ` FROM backfill_jobs ORDER BY created_at DESC LIMIT $1`
)

// Repository keeps the job queue in Postgres.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := r.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// optionalJob maps an empty result to (nil, nil).
func optionalJob(job *Job, err error) (*Job, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// CreateJob inserts job and returns the row as stored.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	stored, err := scanJob(r.db.DB().QueryRowContext(ctx, insertJobSQL,
		job.JobID, job.JobType, job.Seasons, job.Divisions, job.Categories, job.Schools, job.Save,
		job.Status, job.StatusMessage, job.ProgressCurrent, job.ProgressTotal))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return stored, nil
}

// UpdateStatus moves a job to status. lastErr may be nil.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	var text sql.NullString
	if lastErr != nil {
		text.String, text.Valid = lastErr.Error(), true
	}
	return r.exec(ctx, "set job status", setStatusSQL, jobID, string(status), message, text)
}

// UpdateProgress records how many entities are done.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	return r.exec(ctx, "set job progress", setProgressSQL, jobID, current, total, message)
}

// AppendFailure adds one failed entity label to the job.
func (r *Repository) AppendFailure(ctx context.Context, jobID, failure string) error {
	return r.exec(ctx, "add job failure", addFailureSQL, jobID, failure)
}

// AppendEvent writes to the job's event log.
func (r *Repository) AppendEvent(ctx context.Context, jobID, kind, message string) error {
	return r.exec(ctx, "insert job event", insertEventSQL, jobID, kind, message)
}

// ResetStuckJobs requeues jobs left running by a previous process.
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	return r.exec(ctx, "requeue running jobs", requeueRunningSQL)
}

// MarkNextJobRunning claims the oldest queued job. It returns nil when the
// queue is empty.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	job, err := optionalJob(scanJob(r.db.DB().QueryRowContext(ctx, claimNextSQL)))
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// GetJob returns one job, or store.ErrNotFound.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := optionalJob(scanJob(r.db.DB().QueryRowContext(ctx, jobByIDSQL, jobID)))
	switch {
	case err != nil:
		return nil, fmt.Errorf("get job: %w", err)
	case job == nil:
		return nil, fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	return job, nil
}

// GetActiveJob returns the running job or nil.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	job, err := optionalJob(scanJob(r.db.DB().QueryRowContext(ctx, runningSQL)))
	if err != nil {
		return nil, fmt.Errorf("get running job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns up to limit jobs, newest first.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.DB().QueryContext(ctx, recentJobSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	dest := []interface{}{
		&j.JobID, &j.JobType, &j.Seasons, &j.Divisions, &j.Categories, &j.Schools, &j.Save,
		&j.Status, &j.StatusMessage, &j.ProgressCurrent, &j.ProgressTotal, &j.Failures,
		&j.LastError, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &j, nil
}

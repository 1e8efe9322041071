package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists scheduled jobs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobCols = `id, name, job_type, cron_expr, interval_seconds, run_at,
	function_name, params, is_active, next_run, last_run,
	run_count, error_count, last_error, created_at`

// List returns jobs, optionally only active ones, ordered by name.
func (r *Repository) List(ctx context.Context, onlyActive bool) ([]ScheduledJob, error) {
	query := `SELECT ` + jobCols + ` FROM scheduled_jobs`
	if onlyActive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	var jobs []ScheduledJob
	err := pgxscan.Select(ctx, r.pool, &jobs, query)
	return jobs, err
}

// Get fetches one job by id.
func (r *Repository) Get(ctx context.Context, id int64) (ScheduledJob, error) {
	var job ScheduledJob
	err := pgxscan.Get(ctx, r.pool, &job,
		`SELECT `+jobCols+` FROM scheduled_jobs WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScheduledJob{}, ErrNotFound
	}
	return job, err
}

// GetByName fetches one job by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (ScheduledJob, error) {
	var job ScheduledJob
	err := pgxscan.Get(ctx, r.pool, &job,
		`SELECT `+jobCols+` FROM scheduled_jobs WHERE name = $1`, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScheduledJob{}, ErrNotFound
	}
	return job, err
}

// EnsureBuiltin inserts the job unless a row with its name already exists.
// Existing rows keep whatever schedule the operator configured.
func (r *Repository) EnsureBuiltin(ctx context.Context, job ScheduledJob) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO scheduled_jobs
			(name, job_type, cron_expr, interval_seconds, run_at,
			 function_name, params, is_active, next_run, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (name) DO NOTHING`,
		job.Name, job.JobType, job.CronExpr, job.IntervalSeconds, job.RunAt,
		job.FunctionName, job.Params, job.IsActive, job.NextRun, time.Now().UTC())
	return err
}

// SetActive toggles a job; deactivation removes the trigger, in-flight
// executions complete.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a job row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSuccess bumps run_count, stamps last_run and clears last_error.
func (r *Repository) RecordSuccess(ctx context.Context, id int64, at time.Time, nextRun *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET
			run_count = run_count + 1, last_run = $2, next_run = $3, last_error = NULL
		 WHERE id = $1`, id, at, nextRun)
	return err
}

// RecordFailure bumps error_count and stores the truncated error text.
func (r *Repository) RecordFailure(ctx context.Context, id int64, msg string, at time.Time, nextRun *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET
			error_count = error_count + 1, last_run = $2, next_run = $3, last_error = $4
		 WHERE id = $1`, id, at, nextRun, msg)
	return err
}

package scheduler

import (
	"context"
	"log/slog"
	"time"
)

const maxErrorRunes = 500

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	List(ctx context.Context, onlyActive bool) ([]ScheduledJob, error)
	Get(ctx context.Context, id int64) (ScheduledJob, error)
	EnsureBuiltin(ctx context.Context, job ScheduledJob) error
	RecordSuccess(ctx context.Context, id int64, at time.Time, nextRun *time.Time) error
	RecordFailure(ctx context.Context, id int64, msg string, at time.Time, nextRun *time.Time) error
}

// Service resolves and executes registry jobs and keeps their bookkeeping.
type Service struct {
	repo     RepositoryPort
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, registry *Registry, logger *slog.Logger) *Service {
	return &Service{repo: repo, registry: registry, logger: logger, now: time.Now}
}

func cronJob(name, expr, function string, params Params) ScheduledJob {
	return ScheduledJob{
		Name:         name,
		JobType:      JobCron,
		CronExpr:     &expr,
		FunctionName: function,
		Params:       params,
		IsActive:     true,
	}
}

// Builtins are the jobs every installation runs; operators may retune
// their schedules, EnsureBuiltins never overwrites an existing row.
func Builtins() []ScheduledJob {
	return []ScheduledJob{
		cronJob("vendista-sync", "0 2 * * *", "vendista:sync", Params{"date": Today}),
		cronJob("day-close", "30 2 * * *", "terminals:close-day", Params{"date": Today}),
		cronJob("reports-recompute", "0 3 * * *", "reports:compute", Params{"date": Today}),
		cronJob("low-stock", "0 6 * * *", "alerts:low-stock", nil),
		cronJob("payment-due-phone", "0 9 * * *", "alerts:payment-due-phone", nil),
		cronJob("payment-due-rent", "5 9 * * *", "alerts:payment-due-rent", nil),
	}
}

// EnsureBuiltins makes sure every built-in job has a registry row.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	now := s.now().UTC()
	for _, job := range Builtins() {
		next, err := job.NextAfter(now)
		if err != nil {
			return err
		}
		job.NextRun = next
		if err := s.repo.EnsureBuiltin(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// ActiveJobs returns the jobs the transport should schedule.
func (s *Service) ActiveJobs(ctx context.Context) ([]ScheduledJob, error) {
	return s.repo.List(ctx, true)
}

// Run executes one job by id and records the outcome. An inactive job is
// skipped silently. Failures are recorded and returned.
func (s *Service) Run(ctx context.Context, jobID int64) error {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsActive {
		s.logger.Info("skipping inactive job", slog.String("job", job.Name))
		return nil
	}

	started := s.now().UTC()
	runErr := s.execute(ctx, job)
	next, nextErr := job.NextAfter(started)
	if nextErr != nil {
		next = nil
	}

	if runErr != nil {
		s.logger.Error("scheduled job failed",
			slog.String("job", job.Name), slog.Any("error", runErr))
		if err := s.repo.RecordFailure(ctx, job.ID, truncateError(runErr.Error()), started, next); err != nil {
			return err
		}
		return runErr
	}
	s.logger.Info("scheduled job finished",
		slog.String("job", job.Name), slog.Duration("took", s.now().UTC().Sub(started)))
	return s.repo.RecordSuccess(ctx, job.ID, started, next)
}

func (s *Service) execute(ctx context.Context, job ScheduledJob) error {
	fn, err := s.registry.Resolve(job.FunctionName)
	if err != nil {
		return err
	}
	return fn(ctx, job.Params)
}

func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxErrorRunes {
		return msg
	}
	return string(runes[:maxErrorRunes])
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cranefleet/cranefleet/internal/observability"
	"github.com/cranefleet/cranefleet/internal/scheduler"
)

// Worker wraps the asynq server and the cron scheduler feeding it.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	client    *asynq.Client
	jobs      *scheduler.Service
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Jobs      *scheduler.Service
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) *Worker {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	w := &Worker{
		server:  srv,
		mux:     asynq.NewServeMux(),
		client:  asynq.NewClient(cfg.RedisOpts),
		jobs:    cfg.Jobs,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	w.mux.HandleFunc(TaskRunJob, w.handleRunJob)
	w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
	return w
}

func (w *Worker) handleRunJob(ctx context.Context, t *asynq.Task) error {
	var payload RunJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	err := w.jobs.Run(ctx, payload.JobID)
	w.metrics.ObserveJob(payload.Name, err)
	// Outcomes live on the registry row; a failed run must not requeue.
	if err != nil {
		w.logger.Error("job run failed",
			slog.String("job", payload.Name), slog.Any("error", err))
	}
	return nil
}

// RegisterJobs ensures built-ins exist and wires every active registry row
// to its trigger: cron and interval jobs become scheduler entries, date
// jobs are enqueued once at their instant.
func (w *Worker) RegisterJobs(ctx context.Context) error {
	if err := w.jobs.EnsureBuiltins(ctx); err != nil {
		return err
	}
	active, err := w.jobs.ActiveJobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range active {
		task, opts, err := NewRunJobTask(job.ID, job.Name)
		if err != nil {
			return err
		}
		switch job.JobType {
		case scheduler.JobCron:
			if job.CronExpr == nil {
				continue
			}
			if _, err := w.scheduler.Register(*job.CronExpr, task, opts...); err != nil {
				return fmt.Errorf("register %s: %w", job.Name, err)
			}
		case scheduler.JobInterval:
			if job.IntervalSeconds == nil || *job.IntervalSeconds <= 0 {
				continue
			}
			spec := fmt.Sprintf("@every %ds", *job.IntervalSeconds)
			if _, err := w.scheduler.Register(spec, task, opts...); err != nil {
				return fmt.Errorf("register %s: %w", job.Name, err)
			}
		case scheduler.JobDate:
			if job.RunAt == nil || !job.RunAt.After(time.Now().UTC()) {
				continue
			}
			if _, err := w.client.EnqueueContext(ctx, task, append(opts, asynq.ProcessAt(*job.RunAt))...); err != nil {
				return fmt.Errorf("enqueue %s: %w", job.Name, err)
			}
		}
	}
	return nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.scheduler.Shutdown()
		w.server.Shutdown()
		_ = w.client.Close()
		return ctx.Err()
	case err := <-errCh:
		w.scheduler.Shutdown()
		_ = w.client.Close()
		return err
	}
}

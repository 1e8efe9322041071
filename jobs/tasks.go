// Package jobs runs the scheduled-job registry over asynq: cron entries
// fire run-job tasks, the worker resolves them through the scheduler
// registry and records outcomes on the registry rows.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRunJob executes one scheduled job by registry id.
	TaskRunJob = "scheduler:run"
)

// RunJobPayload names the registry row a task executes.
type RunJobPayload struct {
	JobID int64  `json:"job_id"`
	Name  string `json:"name"`
}

// NewRunJobTask constructs the asynq task for one registry job. Uniqueness
// is keyed on the payload, so at most one execution per job is in flight.
func NewRunJobTask(jobID int64, name string) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(RunJobPayload{JobID: jobID, Name: name})
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Unique(time.Hour),
	}
	return asynq.NewTask(TaskRunJob, data), opts, nil
}

// Package scheduler keeps the registry of recurring jobs. A job names a
// registered function and carries its parameters; triggers are cron
// expressions, fixed intervals or a single instant. Execution transport
// lives in jobs/, this package owns the rows and the bookkeeping.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cranefleet/cranefleet/internal/shared"
)

// JobType selects the trigger kind.
type JobType string

const (
	JobCron     JobType = "cron"
	JobInterval JobType = "interval"
	JobDate     JobType = "date"
)

// Today is the sentinel date parameter resolved at execution time.
const Today = "today"

// Params carries a job's string parameters.
type Params map[string]string

// Date resolves a date parameter. The sentinel "today" and an absent key
// both resolve to the current UTC day.
func (p Params) Date(key string) (time.Time, error) {
	raw, ok := p[key]
	if !ok || raw == "" || raw == Today {
		return shared.TruncateDay(time.Now().UTC()), nil
	}
	return shared.ParseDate(raw)
}

// ScheduledJob is one registry row.
type ScheduledJob struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	JobType         JobType    `json:"job_type" db:"job_type"`
	CronExpr        *string    `json:"cron_expr,omitempty" db:"cron_expr"`
	IntervalSeconds *int64     `json:"interval_seconds,omitempty" db:"interval_seconds"`
	RunAt           *time.Time `json:"run_at,omitempty" db:"run_at"`
	FunctionName    string     `json:"function_name" db:"function_name"`
	Params          Params     `json:"params" db:"params"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	NextRun         *time.Time `json:"next_run,omitempty" db:"next_run"`
	LastRun         *time.Time `json:"last_run,omitempty" db:"last_run"`
	RunCount        int64      `json:"run_count" db:"run_count"`
	ErrorCount      int64      `json:"error_count" db:"error_count"`
	LastError       *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

var (
	// ErrNotFound indicates a missing job row.
	ErrNotFound = errors.New("scheduler: job not found")
	// ErrUnknownFunction indicates a function name absent from the registry.
	ErrUnknownFunction = errors.New("scheduler: unknown function")
	// ErrBadSchedule rejects an invalid trigger definition.
	ErrBadSchedule = errors.New("scheduler: invalid schedule")
)

// Validate checks the trigger definition for the job's type.
func (j ScheduledJob) Validate() error {
	switch j.JobType {
	case JobCron:
		if j.CronExpr == nil {
			return fmt.Errorf("%w: cron job needs an expression", ErrBadSchedule)
		}
		if _, err := cron.ParseStandard(*j.CronExpr); err != nil {
			return fmt.Errorf("%w: %v", ErrBadSchedule, err)
		}
	case JobInterval:
		if j.IntervalSeconds == nil || *j.IntervalSeconds <= 0 {
			return fmt.Errorf("%w: interval must be positive", ErrBadSchedule)
		}
	case JobDate:
		if j.RunAt == nil {
			return fmt.Errorf("%w: date job needs an instant", ErrBadSchedule)
		}
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrBadSchedule, j.JobType)
	}
	return nil
}

// NextAfter computes the next fire time after now, nil when the job will
// not fire again.
func (j ScheduledJob) NextAfter(now time.Time) (*time.Time, error) {
	switch j.JobType {
	case JobCron:
		if j.CronExpr == nil {
			return nil, fmt.Errorf("%w: cron job needs an expression", ErrBadSchedule)
		}
		schedule, err := cron.ParseStandard(*j.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSchedule, err)
		}
		next := schedule.Next(now)
		return &next, nil
	case JobInterval:
		if j.IntervalSeconds == nil || *j.IntervalSeconds <= 0 {
			return nil, fmt.Errorf("%w: interval must be positive", ErrBadSchedule)
		}
		next := now.Add(time.Duration(*j.IntervalSeconds) * time.Second)
		return &next, nil
	case JobDate:
		if j.RunAt != nil && j.RunAt.After(now) {
			return j.RunAt, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown job type %q", ErrBadSchedule, j.JobType)
}

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memJobs struct {
	jobs map[int64]*ScheduledJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[int64]*ScheduledJob)}
}

func (m *memJobs) add(job ScheduledJob) *ScheduledJob {
	job.ID = int64(len(m.jobs) + 1)
	m.jobs[job.ID] = &job
	return &job
}

func (m *memJobs) List(_ context.Context, onlyActive bool) ([]ScheduledJob, error) {
	var out []ScheduledJob
	for _, job := range m.jobs {
		if onlyActive && !job.IsActive {
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

func (m *memJobs) Get(_ context.Context, id int64) (ScheduledJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return ScheduledJob{}, ErrNotFound
	}
	return *job, nil
}

func (m *memJobs) EnsureBuiltin(_ context.Context, job ScheduledJob) error {
	for _, existing := range m.jobs {
		if existing.Name == job.Name {
			return nil
		}
	}
	m.add(job)
	return nil
}

func (m *memJobs) RecordSuccess(_ context.Context, id int64, at time.Time, nextRun *time.Time) error {
	job := m.jobs[id]
	job.RunCount++
	job.LastRun = &at
	job.NextRun = nextRun
	job.LastError = nil
	return nil
}

func (m *memJobs) RecordFailure(_ context.Context, id int64, msg string, at time.Time, nextRun *time.Time) error {
	job := m.jobs[id]
	job.ErrorCount++
	job.LastRun = &at
	job.NextRun = nextRun
	job.LastError = &msg
	return nil
}

func strp(s string) *string { return &s }

func newTestScheduler() (*Service, *memJobs, *Registry) {
	repo := newMemJobs()
	registry := NewRegistry()
	return NewService(repo, registry, slog.Default()), repo, registry
}

func TestRunRecordsSuccess(t *testing.T) {
	svc, repo, registry := newTestScheduler()
	var gotDate time.Time
	registry.Register("reports:compute", func(_ context.Context, params Params) error {
		d, err := params.Date("date")
		gotDate = d
		return err
	})
	job := repo.add(ScheduledJob{
		Name: "reports-recompute", JobType: JobCron, CronExpr: strp("0 3 * * *"),
		FunctionName: "reports:compute", Params: Params{"date": Today}, IsActive: true,
	})

	require.NoError(t, svc.Run(context.Background(), job.ID))

	stored := repo.jobs[job.ID]
	require.EqualValues(t, 1, stored.RunCount)
	require.EqualValues(t, 0, stored.ErrorCount)
	require.Nil(t, stored.LastError)
	require.NotNil(t, stored.LastRun)
	require.NotNil(t, stored.NextRun)
	require.Equal(t, 3, stored.NextRun.Hour())

	today := time.Now().UTC().Truncate(24 * time.Hour)
	require.True(t, gotDate.Equal(today), "sentinel date resolved to %s", gotDate)
}

func TestRunRecordsFailureTruncated(t *testing.T) {
	svc, repo, registry := newTestScheduler()
	long := strings.Repeat("я", 600)
	registry.Register("boom", func(context.Context, Params) error {
		return errors.New(long)
	})
	job := repo.add(ScheduledJob{
		Name: "exploding", JobType: JobInterval, IntervalSeconds: ptr(60),
		FunctionName: "boom", IsActive: true,
	})

	err := svc.Run(context.Background(), job.ID)
	require.Error(t, err)

	stored := repo.jobs[job.ID]
	require.EqualValues(t, 1, stored.ErrorCount)
	require.EqualValues(t, 0, stored.RunCount)
	require.NotNil(t, stored.LastError)
	require.Equal(t, 500, len([]rune(*stored.LastError)))
	require.NotNil(t, stored.NextRun, "failed jobs keep firing")
}

func TestRunUnknownFunctionIsRecorded(t *testing.T) {
	svc, repo, _ := newTestScheduler()
	job := repo.add(ScheduledJob{
		Name: "ghost", JobType: JobInterval, IntervalSeconds: ptr(30),
		FunctionName: "nowhere:missing", IsActive: true,
	})

	err := svc.Run(context.Background(), job.ID)
	require.ErrorIs(t, err, ErrUnknownFunction)
	require.EqualValues(t, 1, repo.jobs[job.ID].ErrorCount)
}

func TestRunSkipsInactiveJob(t *testing.T) {
	svc, repo, registry := newTestScheduler()
	fired := false
	registry.Register("noop", func(context.Context, Params) error {
		fired = true
		return nil
	})
	job := repo.add(ScheduledJob{
		Name: "paused", JobType: JobInterval, IntervalSeconds: ptr(30),
		FunctionName: "noop", IsActive: false,
	})

	require.NoError(t, svc.Run(context.Background(), job.ID))
	require.False(t, fired)
	require.EqualValues(t, 0, repo.jobs[job.ID].RunCount)
}

func TestEnsureBuiltinsIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestScheduler()

	require.NoError(t, svc.EnsureBuiltins(context.Background()))
	count := len(repo.jobs)
	require.Equal(t, len(Builtins()), count)

	require.NoError(t, svc.EnsureBuiltins(context.Background()))
	require.Equal(t, count, len(repo.jobs))

	names := make(map[string]bool)
	for _, job := range repo.jobs {
		names[job.Name] = true
		require.NotNil(t, job.NextRun)
	}
	require.True(t, names["vendista-sync"])
	require.True(t, names["low-stock"])
	require.True(t, names["payment-due-rent"])
}

func TestValidateSchedules(t *testing.T) {
	cases := []struct {
		name string
		job  ScheduledJob
		ok   bool
	}{
		{"good cron", ScheduledJob{JobType: JobCron, CronExpr: strp("0 6 * * *")}, true},
		{"bad cron", ScheduledJob{JobType: JobCron, CronExpr: strp("not a cron")}, false},
		{"missing cron", ScheduledJob{JobType: JobCron}, false},
		{"good interval", ScheduledJob{JobType: JobInterval, IntervalSeconds: ptr(300)}, true},
		{"zero interval", ScheduledJob{JobType: JobInterval, IntervalSeconds: ptr(0)}, false},
		{"good date", ScheduledJob{JobType: JobDate, RunAt: timep(time.Now().Add(time.Hour))}, true},
		{"missing date", ScheduledJob{JobType: JobDate}, false},
		{"unknown type", ScheduledJob{JobType: JobType("monthly")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.job.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrBadSchedule)
			}
		})
	}
}

func TestNextAfter(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cronJob := ScheduledJob{JobType: JobCron, CronExpr: strp("0 6 * * *")}
	next, err := cronJob.NextAfter(now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC), *next)

	interval := ScheduledJob{JobType: JobInterval, IntervalSeconds: ptr(3600)}
	next, err = interval.NextAfter(now)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), *next)

	past := ScheduledJob{JobType: JobDate, RunAt: timep(now.Add(-time.Minute))}
	next, err = past.NextAfter(now)
	require.NoError(t, err)
	require.Nil(t, next, "past date jobs never fire again")
}

func ptr(v int64) *int64 { return &v }

func timep(t time.Time) *time.Time { return &t }

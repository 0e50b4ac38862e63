// Package scheduler runs pipelines on a schedule and reloads the pipeline file
// when it changes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler. Jobs never overlap: a run still in
// progress when the next tick arrives pushes that tick to the following slot.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a scheduler. A nil clock uses the real clock.
func NewScheduler(clock clockwork.Clock) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCron runs task on a five-field cron expression.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (string, error) {
	return s.add(name, gocron.CronJob(expr, false), task, slog.String("cron", expr))
}

// ScheduleEvery runs task at a fixed interval.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", errors.ConfigError("schedule interval must be positive").
			WithContext("interval", interval.String()).Build()
	}
	return s.add(name, gocron.DurationJob(interval), task, slog.Duration("interval", interval))
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, task func(), attr slog.Attr) (string, error) {
	job, err := s.scheduler.NewJob(def,
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "invalid schedule").
			WithContext("job", name).Build()
	}
	slog.Info("Scheduled pipeline", slog.String("job", name), attr)
	return job.ID().String(), nil
}

// Remove deletes a job by ID.
func (s *Scheduler) Remove(id string) error {
	u, err := uuid.Parse(id)
	if err != nil {
		return errors.ValidationError("invalid job id").WithCause(err).Build()
	}
	return s.scheduler.RemoveJob(u)
}

// NextRun returns when job id runs next.
func (s *Scheduler) NextRun(id string) (time.Time, error) {
	for _, j := range s.scheduler.Jobs() {
		if j.ID().String() == id {
			return j.NextRun()
		}
	}
	return time.Time{}, errors.NewError(errors.CategoryNotFound, "no such job").WithContext("job", id).Build()
}

// RunFunc adapts a context-aware run to a job task. Each run gets a fresh
// context derived from parent and bounded by timeout when positive.
func RunFunc(parent context.Context, timeout time.Duration, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := parent, context.CancelFunc(func() {})
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parent, timeout)
		}
		defer cancel()
		if err := run(ctx); err != nil {
			slog.Error("Scheduled run failed", slog.String("error", err.Error()))
		}
	}
}

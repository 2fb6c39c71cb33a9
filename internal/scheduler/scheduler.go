// Package scheduler arms one daily publish job per enabled schedule entry and
// runs the static maintenance tasks. The publish jobs are always rebuilt from
// the store as a whole after a schedule change.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/affirmabot/internal/bot/tasks"
	"github.com/edgard/affirmabot/internal/config"
	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/logger"
	"github.com/edgard/affirmabot/internal/metrics"
)

const (
	publishTag = "publish"
	taskTag    = "task"
)

// ScheduleSource lists the entries that should be armed.
type ScheduleSource interface {
	ListEnabledSchedule(ctx context.Context) ([]database.ScheduleEntry, error)
}

// PublishFunc is invoked when a publish job fires.
type PublishFunc func(ctx context.Context) error

// ArmedEntry is a schedule entry that currently has a job.
type ArmedEntry struct {
	EntryID   int64
	TimeOfDay string
}

// Deps holds the scheduler collaborators. Metrics may be nil.
type Deps struct {
	Logger   *slog.Logger
	Source   ScheduleSource
	Publish  PublishFunc
	Tasks    map[string]tasks.ScheduledTaskFunc
	Config   *config.SchedulerConfig
	Location *time.Location
	Metrics  *metrics.Metrics
}

// Scheduler manages publish jobs and static tasks on gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	deps      Deps
	mu        sync.Mutex
	running   bool
	armed     map[int64]ArmedEntry
}

// New creates a scheduler evaluating schedule times in deps.Location.
func New(deps Deps) (*Scheduler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Config == nil {
		deps.Config = &config.SchedulerConfig{PublishTimeout: config.DefaultPublishTimeout}
	}
	log := deps.Logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(
		gocron.WithLocation(deps.Location),
		gocron.WithLogger(logger.NewGocronLogger(deps.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		deps:      deps,
		armed:     make(map[int64]ArmedEntry),
	}, nil
}

// Start registers the static tasks, arms the publish jobs and starts ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduledTasks := s.registerTasks()

	if err := s.rebuildLocked(ctx); err != nil {
		return fmt.Errorf("failed to arm publish jobs: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.InfoContext(ctx, "Scheduler started",
		"timezone", s.deps.Location.String(),
		"tasks_scheduled", scheduledTasks,
		"publish_jobs", len(s.armed))
	return nil
}

// Stop shuts gocron down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}

	s.running = false
	return err
}

// Rebuild removes every publish job and arms one per enabled entry in the
// store. Firings already in progress are not interrupted. On a store error the
// previous jobs stay armed.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rebuildLocked(ctx)
}

func (s *Scheduler) rebuildLocked(ctx context.Context) error {
	entries, err := s.deps.Source.ListEnabledSchedule(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load schedule, keeping current jobs", "error", err)
		return err
	}

	s.scheduler.RemoveByTags(publishTag)
	armed := make(map[int64]ArmedEntry, len(entries))

	var errs []error
	for _, entry := range entries {
		hour, minute, err := ParseTimeOfDay(entry.TimeOfDay)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping schedule entry with invalid time",
				"entry_id", entry.ID, "time", entry.TimeOfDay, "error", err)
			continue
		}

		_, err = s.scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0))),
			gocron.NewTask(func() { s.fire(entry) }),
			gocron.WithName(jobName(entry)),
			gocron.WithTags(publishTag),
		)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to arm publish job", "entry_id", entry.ID, "time", entry.TimeOfDay, "error", err)
			errs = append(errs, fmt.Errorf("entry %d: %w", entry.ID, err))
			continue
		}
		armed[entry.ID] = ArmedEntry{EntryID: entry.ID, TimeOfDay: entry.TimeOfDay}
	}

	s.armed = armed
	s.deps.Metrics.SetArmed(len(armed))
	s.logger.InfoContext(ctx, "Publish jobs rebuilt", "armed", len(armed), "enabled_entries", len(entries))
	return errors.Join(errs...)
}

// Armed returns the entries that currently have a publish job, ordered by time.
func (s *Scheduler) Armed() []ArmedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ArmedEntry, 0, len(s.armed))
	for _, a := range s.armed {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b ArmedEntry) int {
		return cmp.Or(cmp.Compare(a.TimeOfDay, b.TimeOfDay), cmp.Compare(a.EntryID, b.EntryID))
	})
	return out
}

// NextRun returns the earliest upcoming publish time, if the scheduler is running.
func (s *Scheduler) NextRun() (time.Time, bool) {
	var next time.Time
	for _, job := range s.scheduler.Jobs() {
		if !slices.Contains(job.Tags(), publishTag) {
			continue
		}
		t, err := job.NextRun()
		if err != nil || t.IsZero() {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, !next.IsZero()
}

// fire runs one scheduled publish. Failures and panics are logged and counted;
// they never reach gocron, so the job fires again at its next time.
func (s *Scheduler) fire(entry database.ScheduleEntry) {
	log := s.logger.With("entry_id", entry.ID, "time", entry.TimeOfDay)

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.PublishTimeout)
	defer cancel()

	start := time.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			log.Error("Scheduled publish panicked", "panic", r, "stack", string(debug.Stack()))
		}
		s.deps.Metrics.ObserveFire(result)
	}()

	log.InfoContext(ctx, "Scheduled publish firing")
	if err := s.deps.Publish(ctx); err != nil {
		result = "error"
		log.ErrorContext(ctx, "Scheduled publish failed, will retry at the next scheduled time",
			"code", apperrors.Code(err), "error", err, "duration", time.Since(start))
		return
	}
	log.InfoContext(ctx, "Scheduled publish completed", "duration", time.Since(start))
}

// registerTasks schedules the enabled static tasks and returns how many were added.
func (s *Scheduler) registerTasks() int {
	if len(s.deps.Config.Tasks) == 0 {
		s.logger.Debug("No static tasks configured")
		return 0
	}

	scheduled := 0
	for taskName, taskConfig := range s.deps.Config.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.deps.Tasks[taskName]
		if !exists {
			s.logger.Warn("Task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, false),
			gocron.NewTask(func() { s.runTask(taskName, taskFunc) }),
			gocron.WithName(taskName),
			gocron.WithTags(taskTag),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduled++
	}
	return scheduled
}

func (s *Scheduler) runTask(name string, fn tasks.ScheduledTaskFunc) {
	log := s.logger.With("task_name", name)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scheduled task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	log.Info("Running scheduled task")
	startTime := time.Now()
	if err := fn(context.Background()); err != nil {
		log.Error("Scheduled task failed", "error", err)
	}
	log.Info("Finished scheduled task", "duration", time.Since(startTime))
}

func jobName(entry database.ScheduleEntry) string {
	return fmt.Sprintf("publish_%d_%s", entry.ID, entry.TimeOfDay)
}

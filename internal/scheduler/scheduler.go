// Package scheduler runs export, report and retention jobs on cron
// schedules.
//
// Schedules use the standard five-field cron syntax or descriptors such as
// "@daily", evaluated in UTC. A job that is still running when its next
// slot fires is skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// DefaultJobTimeout bounds one scheduled export.
const DefaultJobTimeout = 5 * time.Minute

// Exporter is the subset of export.Exporter the scheduler drives.
type Exporter interface {
	ExportAll(ctx context.Context) (*domain.ExportResult, error)
	GenerateReport(ctx context.Context) (*domain.ReportResult, error)
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

// Job names.
const (
	JobExport = "export"
	JobReport = "report"
	JobPrune  = "prune"
)

// Scheduler owns a cron instance and the export jobs registered on it.
type Scheduler struct {
	cron     *cron.Cron
	exporter Exporter
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
	stopped bool
}

// New creates a Scheduler. Nothing runs until Start.
func New(exporter Exporter, logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		exporter: exporter,
		timeout:  DefaultJobTimeout,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// ValidateSchedule checks a cron expression.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// ScheduleExport runs ExportAll on the given cron schedule. Rescheduling
// replaces the previous entry.
func (s *Scheduler) ScheduleExport(spec string) error {
	return s.schedule(JobExport, spec, func(ctx context.Context) error {
		result, err := s.exporter.ExportAll(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("scheduled export completed", "folder", result.Folder, "files", result.FileCount())
		return nil
	})
}

// ScheduleReport runs GenerateReport on the given cron schedule.
func (s *Scheduler) ScheduleReport(spec string) error {
	return s.schedule(JobReport, spec, func(ctx context.Context) error {
		result, err := s.exporter.GenerateReport(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("scheduled report completed", "name", result.Name, "pages", result.PageCount)
		return nil
	})
}

// SchedulePrune deletes stored files older than retention on the given
// cron schedule.
func (s *Scheduler) SchedulePrune(spec string, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("retention must be positive, got %v", retention)
	}
	return s.schedule(JobPrune, spec, func(ctx context.Context) error {
		removed, err := s.exporter.Prune(ctx, retention)
		if err != nil {
			return err
		}
		s.logger.Info("scheduled prune completed", "removed", removed, "retention", retention)
		return nil
	})
}

func (s *Scheduler) schedule(name, spec string, run func(ctx context.Context) error) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}

	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err, "duration", time.Since(start))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.entries[name] = id

	s.logger.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Next returns the next run time of each scheduled job. Jobs have a zero
// time until the scheduler is started.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop halts scheduling and waits for running jobs up to ctx's deadline.
// It is safe to call more than once and before Start.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// =============================================================================
// cron.Logger adapter
// =============================================================================

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

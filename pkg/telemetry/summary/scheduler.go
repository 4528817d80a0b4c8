package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/loupe/pkg/telemetry/metrics"
)

// Source supplies the running recorder totals.
type Source interface {
	Totals() (metrics.Totals, error)
}

// Scheduler logs a summary of recorded traffic on a cron schedule. Each
// line reports the activity since the previous run.
type Scheduler struct {
	source   Source
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool

	lastMu  sync.Mutex
	last    metrics.Totals
	lastRun time.Time
}

// NewScheduler creates a scheduler for the given cron expression. An empty
// schedule makes Start a no-op.
func NewScheduler(source Source, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:   source,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "summary"),
		lastRun:  time.Now(),
	}
}

// Start schedules the summary job. The scheduler stops when ctx is done.
//
// Common cron expressions:
//   - "* * * * *"    - Every minute
//   - "*/5 * * * *"  - Every 5 minutes
//   - "0 * * * *"    - Hourly
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Debug("summary schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.Run); err != nil {
		return fmt.Errorf("failed to schedule summary: %w", err)
	}

	baseline, err := s.source.Totals()
	if err != nil {
		return fmt.Errorf("failed to read baseline totals: %w", err)
	}
	s.lastMu.Lock()
	s.last = baseline
	s.lastMu.Unlock()

	s.cron.Start()
	s.running = true

	s.logger.Info("summary scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Run logs one summary line covering the time since the previous run.
func (s *Scheduler) Run() {
	totals, err := s.source.Totals()
	if err != nil {
		s.logger.Error("failed to read recorder totals", "error", err)
		return
	}

	s.lastMu.Lock()
	delta := totals.Sub(s.last)
	since := time.Since(s.lastRun)
	s.last = totals
	s.lastRun = time.Now()
	s.lastMu.Unlock()

	level := slog.LevelInfo
	if delta.ServerErrors > 0 || delta.TransportErrors > 0 {
		level = slog.LevelWarn
	}

	s.logger.Log(context.Background(), level, "recorder summary",
		"window_seconds", int64(since.Seconds()),
		"requests", delta.Requests,
		"server_errors", delta.ServerErrors,
		"transport_errors", delta.TransportErrors,
		"capture_fallbacks", delta.Fallbacks,
		"requests_total", totals.Requests,
	)
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("summary scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

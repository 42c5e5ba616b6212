package multitenantengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/processgpt/dmnrules/internal/logger"
)

// Refresher reloads every scope it knows about
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Scheduler refreshes rule indexes off the request path on a cron schedule
type Scheduler struct {
	refresher Refresher
	schedule  string
	mu        sync.Mutex
	running   bool

	// cron and stopped belong to the current run; Start replaces both
	cron    *cron.Cron
	stopped chan struct{}
}

// NewScheduler creates a scheduler for the given cron expression, e.g. "@every 5m" or "*/10 * * * *"
func NewScheduler(refresher Refresher, schedule string) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		schedule:  schedule,
	}
}

// Start schedules the refresh job. An empty schedule is a no-op.
// The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		logger.Info("Refresh schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.refresh(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	stopped := make(chan struct{})
	c.Start()
	s.cron, s.stopped, s.running = c, stopped, true
	logger.Info("Rule refresh scheduler started", "schedule", s.schedule)

	go func() {
		select {
		case <-ctx.Done():
			s.stopRun(c)
		case <-stopped:
		}
	}()

	return nil
}

func (s *Scheduler) refresh(ctx context.Context) {
	start := time.Now()
	if err := s.refresher.RefreshAll(ctx); err != nil {
		logger.Warn("Scheduled refresh completed with failures",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	logger.Debug("Scheduled refresh completed", "duration_ms", time.Since(start).Milliseconds())
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopRun stops run c unless Stop already ended it and a later Start began another
func (s *Scheduler) stopRun(c *cron.Cron) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == c {
		s.stopLocked()
	}
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	close(s.stopped)
	s.running = false
	logger.Info("Rule refresh scheduler stopped")
}

// NextRun returns the next scheduled refresh, or nil when not running
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// Package scheduler runs the monthly usage rollover on a cron schedule.
//
// The reset job operates only on rows outside the current period, so it
// never contends with live admission traffic, and re-running it is
// harmless. An external scheduler can run cmd/resetusage instead; this
// in-process scheduler exists for deployments without one.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/Emart29/iOpsAI/internal/service"
)

// Scheduler triggers the reset service on a standard cron expression,
// typically shortly after each month boundary (e.g. "5 0 1 * *").
type Scheduler struct {
	reset    service.ResetService
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler. An empty schedule disables it.
func New(reset service.ResetService, schedule string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reset:    reset,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start validates the schedule and begins firing the reset job. It returns
// immediately; the job runs on the cron's own goroutine until Stop or until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("reset schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid reset schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runReset(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule reset job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("reset scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runReset executes one rollover pass.
func (s *Scheduler) runReset(ctx context.Context) {
	result, err := s.reset.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled usage rollover failed", "error", err)
		return
	}
	s.logger.Info("scheduled usage rollover completed",
		"period", result.Period,
		"rollovers", result.Rollovers,
	)
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("reset scheduler stopped")
}

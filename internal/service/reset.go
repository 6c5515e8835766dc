// Package service contains the business logic layer.
//
// This file implements the monthly reset job. Usage accounting opens a
// fresh row per calendar month, so the job never zeroes counters: past
// rows are an immutable audit trail, and the new period's row is created
// lazily by the first metered action. The job's work is rollover
// accounting, which makes re-running it after a boundary harmless.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Emart29/iOpsAI/internal/domain"
	"github.com/Emart29/iOpsAI/internal/metrics"
	"github.com/Emart29/iOpsAI/internal/repository"
)

// ResetResult reports one run of the monthly reset job.
type ResetResult struct {
	Period    domain.Period // the period users are rolling into
	Rollovers int64         // users with history but no record yet this period
}

// ResetService runs the monthly usage rollover.
type ResetService interface {
	// Run executes one reset pass for the current period and reports how
	// many users rolled over. Idempotent: a second run after a boundary
	// observes the same state and never double-resets or touches counts
	// accrued in the new period.
	Run(ctx context.Context) (*ResetResult, error)
}

type resetService struct {
	usage  repository.UsageStore
	now    func() time.Time
	logger *slog.Logger
}

// NewResetService creates a ResetService. Pass a nil clock for time.Now.
func NewResetService(usage repository.UsageStore, now func() time.Time, logger *slog.Logger) ResetService {
	if now == nil {
		now = time.Now
	}
	return &resetService{
		usage:  usage,
		now:    now,
		logger: logger,
	}
}

// Run implements ResetService.
func (s *resetService) Run(ctx context.Context) (*ResetResult, error) {
	const op = "reset.run"

	period := domain.PeriodOf(s.now())

	rollovers, err := s.usage.CountRollovers(ctx, period)
	if err != nil {
		metrics.ResetRunsTotal.WithLabelValues("failed").Inc()
		return nil, domain.Wrap(err, domain.ErrorCode(err), op, "failed to count rollovers")
	}

	metrics.ResetRunsTotal.WithLabelValues("completed").Inc()
	metrics.ResetRolloversLast.Set(float64(rollovers))

	s.logger.Info("monthly usage rollover",
		"op", op,
		"period", period,
		"rollovers", rollovers,
	)

	return &ResetResult{Period: period, Rollovers: rollovers}, nil
}

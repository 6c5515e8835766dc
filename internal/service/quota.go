// Package service contains the business logic layer.
//
// This file implements the quota gate: the single entry point protected
// operations call before doing metered work. The gate fuses the limit check
// and the counter increment into one atomic storage operation so that
// concurrent requests can never jointly exceed a limit.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Emart29/iOpsAI/internal/domain"
	"github.com/Emart29/iOpsAI/internal/metrics"
	"github.com/Emart29/iOpsAI/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaGate defines the admission operations external collaborators call.
type QuotaGate interface {
	// Admit decides whether the user may perform one metered action of the
	// given resource type. On Allowed=true the action is already counted
	// and the caller must proceed to do the work; callers should only call
	// Admit once they are committed to performing the action, because the
	// count is not rolled back if they abort afterwards.
	//
	// A returned error means the quota could not be determined (storage or
	// configuration failure) and is never a denial; callers must not treat
	// it as either outcome.
	Admit(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) (*domain.Admission, error)

	// Snapshot returns the user's current-period usage against their
	// limits. Read-only: it never creates a record and never increments.
	Snapshot(ctx context.Context, userID uuid.UUID) (*domain.UsageSnapshot, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaGate struct {
	users  repository.UserStore
	usage  repository.UsageStore
	limits *domain.LimitTable
	now    func() time.Time
	logger *slog.Logger
}

// NewQuotaGate creates a new QuotaGate.
//
// The clock is injected so tests can pin the accounting period; production
// callers pass nil to use time.Now. Periods are always computed in UTC from
// the server's reference clock, never from anything the caller supplies.
func NewQuotaGate(users repository.UserStore, usage repository.UsageStore, limits *domain.LimitTable, now func() time.Time, logger *slog.Logger) QuotaGate {
	if now == nil {
		now = time.Now
	}
	return &quotaGate{
		users:  users,
		usage:  usage,
		limits: limits,
		now:    now,
		logger: logger,
	}
}

// Admit implements QuotaGate.
//
// Flow:
//  1. Resolve the user's current tier (fresh read, so an upgrade takes
//     effect on the very next call)
//  2. Resolve the limit for (tier, resource)
//  3. Compute the current period from the reference clock
//  4. Get or create the period's usage record
//  5. Atomically increment-if-below-limit; the affected-row verdict is the
//     admission
//  6. On denial, re-read the record to report an accurate "X/Y" figure
func (g *quotaGate) Admit(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) (*domain.Admission, error) {
	const op = "quota.admit"

	start := time.Now()
	defer func() {
		metrics.AdmissionDuration.WithLabelValues(string(resource)).Observe(time.Since(start).Seconds())
	}()

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, g.fail(resource, err)
	}

	limit, err := g.limits.LimitFor(user.Tier, resource)
	if err != nil {
		return nil, g.fail(resource, err)
	}

	period := domain.PeriodOf(g.now())

	if _, err := g.usage.GetOrCreate(ctx, userID, period); err != nil {
		return nil, g.fail(resource, err)
	}

	admitted, err := g.usage.TryIncrement(ctx, userID, period, resource, limit)
	if err != nil {
		return nil, g.fail(resource, err)
	}

	if admitted {
		metrics.AdmissionsTotal.WithLabelValues(string(resource), string(user.Tier), metrics.OutcomeAdmitted).Inc()
		return &domain.Admission{Allowed: true, Tier: user.Tier}, nil
	}

	// Denied: the counter is untouched. Read the current count so the
	// message reports the exact figure the conditional update saw.
	rec, err := g.usage.Get(ctx, userID, period)
	if err != nil {
		return nil, g.fail(resource, err)
	}

	decision := domain.Decide(resource, rec.CountFor(resource), limit)
	g.logger.Info("quota exceeded",
		"op", op,
		"user_id", userID,
		"tier", user.Tier,
		"resource", resource,
		"used", rec.CountFor(resource),
		"limit", int64(limit),
	)
	metrics.AdmissionsTotal.WithLabelValues(string(resource), string(user.Tier), metrics.OutcomeDenied).Inc()

	return &domain.Admission{
		Allowed: false,
		Message: decision.Message,
		Tier:    user.Tier,
	}, nil
}

// Snapshot implements QuotaGate.
func (g *quotaGate) Snapshot(ctx context.Context, userID uuid.UUID) (*domain.UsageSnapshot, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	period := domain.PeriodOf(g.now())

	rec, err := g.usage.Get(ctx, userID, period)
	if err != nil {
		if domain.ErrorCode(err) != domain.ENOTFOUND {
			return nil, err
		}
		// No metered action yet this period. The record is created lazily
		// on first admission; a snapshot must not create it.
		rec = &domain.UsageRecord{UserID: userID, Period: period}
	}

	snapshot := &domain.UsageSnapshot{
		Tier:        user.Tier,
		Period:      period,
		PerResource: make(map[domain.ResourceType]domain.ResourceUsage, len(domain.ResourceTypes)),
	}
	for _, resource := range domain.ResourceTypes {
		limit, err := g.limits.LimitFor(user.Tier, resource)
		if err != nil {
			return nil, err
		}
		snapshot.PerResource[resource] = domain.ResourceUsage{
			Current:   rec.CountFor(resource),
			Limit:     int64(limit),
			Unlimited: limit.IsUnlimited(),
		}
	}
	return snapshot, nil
}

// fail records an admission failure metric and passes the error through.
func (g *quotaGate) fail(resource domain.ResourceType, err error) error {
	metrics.AdmissionErrors.WithLabelValues(string(resource), domain.ErrorCode(err)).Inc()
	return err
}

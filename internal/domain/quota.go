// Package domain contains core business types and interfaces.
//
// This file defines the tier limit table and the pure quota decision logic.
// Nothing here performs I/O; the service layer owns persistence.
package domain

import "fmt"

// ResourceType identifies a metered action category.
type ResourceType string

const (
	ResourceDataset   ResourceType = "dataset"
	ResourceAIMessage ResourceType = "ai_message"
	ResourceReport    ResourceType = "report"
)

// ResourceTypes lists every metered resource, in display order.
var ResourceTypes = []ResourceType{ResourceDataset, ResourceAIMessage, ResourceReport}

// ParseResourceType validates a resource type name. Unrecognized names fail
// closed as a configuration error.
func ParseResourceType(s string) (ResourceType, error) {
	switch ResourceType(s) {
	case ResourceDataset, ResourceAIMessage, ResourceReport:
		return ResourceType(s), nil
	}
	return "", Config("resource.parse", "unknown resource type %q", s)
}

// DisplayName returns the user-facing name of the resource, used in denial
// messages.
func (r ResourceType) DisplayName() string {
	switch r {
	case ResourceDataset:
		return "dataset"
	case ResourceAIMessage:
		return "AI message"
	case ResourceReport:
		return "public report"
	}
	return string(r)
}

// Limit is a monthly cap for one (tier, resource) pair.
//
// Unlimited is a distinct sentinel and is never confused with a zero limit:
// a zero limit denies every call, Unlimited admits every call.
type Limit int64

// Unlimited means no cap is enforced for a tier/resource pair.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit is the Unlimited sentinel.
func (l Limit) IsUnlimited() bool {
	return l == Unlimited
}

// TierLimits defines the per-resource monthly limits for one tier.
type TierLimits struct {
	DatasetsPerMonth   Limit
	AIMessagesPerMonth Limit
	ReportsPerMonth    Limit
}

// limitTable maps every known tier to its limits. Free tier has strict
// limits; every paid tier is unlimited across the board.
var limitTable = map[Tier]TierLimits{
	TierFree: {
		DatasetsPerMonth:   5,
		AIMessagesPerMonth: 50,
		ReportsPerMonth:    3,
	},
	TierPro: {
		DatasetsPerMonth:   Unlimited,
		AIMessagesPerMonth: Unlimited,
		ReportsPerMonth:    Unlimited,
	},
	TierTeam: {
		DatasetsPerMonth:   Unlimited,
		AIMessagesPerMonth: Unlimited,
		ReportsPerMonth:    Unlimited,
	},
	TierEnterprise: {
		DatasetsPerMonth:   Unlimited,
		AIMessagesPerMonth: Unlimited,
		ReportsPerMonth:    Unlimited,
	},
}

// LimitTable resolves (tier, resource) pairs to monthly limits.
//
// The table fails closed: an unrecognized tier or resource type is a
// configuration error, not an unlimited grant.
type LimitTable struct {
	limits map[Tier]TierLimits
}

// NewLimitTable returns the built-in limit table.
func NewLimitTable() *LimitTable {
	return &LimitTable{limits: limitTable}
}

// NewLimitTableWithOverrides returns a limit table with the free tier's
// limits replaced. Used for environment overrides; paid tiers stay unlimited.
func NewLimitTableWithOverrides(free TierLimits) *LimitTable {
	limits := make(map[Tier]TierLimits, len(limitTable))
	for tier, tl := range limitTable {
		limits[tier] = tl
	}
	limits[TierFree] = free
	return &LimitTable{limits: limits}
}

// LimitFor resolves the monthly limit for a tier and resource type.
func (t *LimitTable) LimitFor(tier Tier, resource ResourceType) (Limit, error) {
	const op = "quota.limit_for"

	tl, ok := t.limits[tier]
	if !ok {
		return 0, Config(op, "no limits configured for tier %q", tier)
	}
	switch resource {
	case ResourceDataset:
		return tl.DatasetsPerMonth, nil
	case ResourceAIMessage:
		return tl.AIMessagesPerMonth, nil
	case ResourceReport:
		return tl.ReportsPerMonth, nil
	}
	return 0, Config(op, "no limit configured for resource type %q", resource)
}

// Decision is the outcome of a pure quota check.
type Decision struct {
	Allowed bool
	Message string // set only on denial
}

// Decide translates a (current count, limit) pair into an allow/deny
// decision. Unlimited always allows. The denial message embeds the exact
// current/limit figures so callers can surface an accurate "X/Y".
func Decide(resource ResourceType, current int64, limit Limit) Decision {
	if limit.IsUnlimited() {
		return Decision{Allowed: true}
	}
	if current >= int64(limit) {
		return Decision{
			Allowed: false,
			Message: fmt.Sprintf(
				"You've reached your monthly %s limit (%d/%d). Please upgrade your plan.",
				resource.DisplayName(), current, int64(limit),
			),
		}
	}
	return Decision{Allowed: true}
}

// Admission is the outcome of a gate call: allowed (and already counted) or
// denied (and uncounted).
type Admission struct {
	Allowed bool
	Message string // user-facing denial message, empty when allowed
	Tier    Tier
}

// ResourceUsage is the per-resource slice of a usage snapshot.
type ResourceUsage struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"` // -1 when unlimited
	Unlimited bool  `json:"unlimited"`
}

// UsageSnapshot is a read-only report of a user's usage for the current
// period, used by the usage-display endpoint. It has no side effects and is
// never used for gating.
type UsageSnapshot struct {
	Tier        Tier                           `json:"tier"`
	Period      Period                         `json:"period"`
	PerResource map[ResourceType]ResourceUsage `json:"per_resource"`
}

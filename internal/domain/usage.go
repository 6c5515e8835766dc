package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Period identifies a calendar-month accounting window, format "YYYY-MM".
type Period string

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// PeriodOf returns the period containing t, evaluated in UTC. Admission
// always uses the server's reference clock, never the caller's.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

// Validate reports whether the period is well-formed.
func (p Period) Validate() error {
	if !periodPattern.MatchString(string(p)) {
		return Invalid("period.validate", "period must be formatted YYYY-MM")
	}
	return nil
}

// Before reports whether p is an earlier month than other. Lexicographic
// comparison is correct for the fixed YYYY-MM format.
func (p Period) Before(other Period) bool {
	return string(p) < string(other)
}

// UsageRecord is one accounting period for one user. Exactly one record
// exists per (user, period), enforced by a storage uniqueness constraint.
//
// Counters are monotonically non-decreasing within a period; a new period
// gets a fresh row rather than mutating a past one, so old records double
// as an audit trail.
type UsageRecord struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Period          Period
	DatasetsCount   int64
	AIMessagesCount int64
	ReportsCount    int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CountFor returns the counter for the given resource type.
func (r *UsageRecord) CountFor(resource ResourceType) int64 {
	switch resource {
	case ResourceDataset:
		return r.DatasetsCount
	case ResourceAIMessage:
		return r.AIMessagesCount
	case ResourceReport:
		return r.ReportsCount
	}
	return 0
}

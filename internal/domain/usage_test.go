package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want Period
	}{
		{"mid month", time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC), "2026-08"},
		{"first instant of month", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "2026-09"},
		{"last instant of month", time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC), "2026-08"},
		// Periods are computed in UTC regardless of the wall clock's zone.
		{"non-UTC clock", time.Date(2026, 9, 1, 5, 0, 0, 0, time.FixedZone("UTC+11", 11*3600)), "2026-08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodOf(tt.at))
		})
	}
}

func TestPeriod_Validate(t *testing.T) {
	for _, valid := range []Period{"2026-01", "2026-12", "1999-06"} {
		assert.NoError(t, valid.Validate(), "period %q", valid)
	}
	for _, invalid := range []Period{"2026-13", "2026-0", "2026-00", "202608", "2026-08-01", "", "aug-2026"} {
		assert.Error(t, invalid.Validate(), "period %q", invalid)
	}
}

func TestPeriod_Before(t *testing.T) {
	assert.True(t, Period("2026-07").Before("2026-08"))
	assert.True(t, Period("2025-12").Before("2026-01"))
	assert.False(t, Period("2026-08").Before("2026-08"))
	assert.False(t, Period("2026-09").Before("2026-08"))
}

func TestUsageRecord_CountFor(t *testing.T) {
	rec := &UsageRecord{
		DatasetsCount:   4,
		AIMessagesCount: 17,
		ReportsCount:    2,
	}

	assert.Equal(t, int64(4), rec.CountFor(ResourceDataset))
	assert.Equal(t, int64(17), rec.CountFor(ResourceAIMessage))
	assert.Equal(t, int64(2), rec.CountFor(ResourceReport))
	assert.Equal(t, int64(0), rec.CountFor(ResourceType("bogus")))
}

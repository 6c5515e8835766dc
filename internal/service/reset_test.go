package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emart29/iOpsAI/internal/domain"
)

func TestResetService_Run(t *testing.T) {
	users := newFakeUserStore()
	usage := newFakeUsageStore()

	// Three users active in August; one of them has already acted in
	// September.
	a := users.add(domain.TierFree)
	b := users.add(domain.TierFree)
	c := users.add(domain.TierPro)

	augustGate := newTestGate(users, usage, august)
	for _, id := range []uuid.UUID{a, b, c} {
		_, err := augustGate.Admit(context.Background(), id, domain.ResourceDataset)
		require.NoError(t, err)
	}

	september := time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC)
	septemberGate := newTestGate(users, usage, september)
	_, err := septemberGate.Admit(context.Background(), c, domain.ResourceDataset)
	require.NoError(t, err)

	reset := NewResetService(usage, fixedClock(september), testLogger())
	result, err := reset.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.Period("2026-09"), result.Period)
	assert.Equal(t, int64(2), result.Rollovers, "a and b still need to roll over")
}

func TestResetService_Run_Idempotent(t *testing.T) {
	users := newFakeUserStore()
	usage := newFakeUsageStore()
	userID := users.add(domain.TierFree)

	augustGate := newTestGate(users, usage, august)
	_, err := augustGate.Admit(context.Background(), userID, domain.ResourceReport)
	require.NoError(t, err)

	september := time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC)
	reset := NewResetService(usage, fixedClock(september), testLogger())

	first, err := reset.Run(context.Background())
	require.NoError(t, err)
	second, err := reset.Run(context.Background())
	require.NoError(t, err)

	// Back-to-back runs observe identical state and mutate nothing.
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), usage.recordCount(userID, "2026-08", domain.ResourceReport))

	// Counts accrued in the new period before a re-run stay intact.
	septemberGate := newTestGate(users, usage, september)
	_, err = septemberGate.Admit(context.Background(), userID, domain.ResourceReport)
	require.NoError(t, err)

	third, err := reset.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), third.Rollovers)
	assert.Equal(t, int64(1), usage.recordCount(userID, "2026-09", domain.ResourceReport))
}

func TestResetService_Run_StorageFailure(t *testing.T) {
	usage := newFakeUsageStore()
	usage.fail = domain.Storage(context.DeadlineExceeded, "fake_usage_store", "connection lost")

	reset := NewResetService(usage, fixedClock(august), testLogger())
	result, err := reset.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, domain.IsStorage(err))
}

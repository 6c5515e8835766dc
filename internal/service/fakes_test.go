package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Emart29/iOpsAI/internal/domain"
)

// fakeUserStore is an in-memory UserStore for service tests.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	fail  error // when set, every call fails with this error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *fakeUserStore) add(tier domain.Tier) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.users[id] = &domain.User{
		ID:       id,
		Email:    fmt.Sprintf("%s@example.com", id),
		Tier:     tier,
		IsActive: true,
	}
	return id
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("fake_user_store.get_by_id", "user", id.String())
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeUserStore) UpdateTier(_ context.Context, id uuid.UUID, tier domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.NotFound("fake_user_store.update_tier", "user", id.String())
	}
	u.Tier = tier
	return nil
}

// fakeUsageStore is an in-memory UsageStore. The mutex gives it the same
// atomicity the conditional UPDATE provides in PostgreSQL, so concurrency
// tests against it exercise the real admission ordering guarantees.
type fakeUsageStore struct {
	mu      sync.Mutex
	records map[string]*domain.UsageRecord
	fail    error // when set, every call fails with this error
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{records: make(map[string]*domain.UsageRecord)}
}

func usageKey(userID uuid.UUID, period domain.Period) string {
	return fmt.Sprintf("%s/%s", userID, period)
}

func (s *fakeUsageStore) GetOrCreate(_ context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	key := usageKey(userID, period)
	if rec, ok := s.records[key]; ok {
		copied := *rec
		return &copied, nil
	}
	rec := &domain.UsageRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Period:    period,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.records[key] = rec
	copied := *rec
	return &copied, nil
}

func (s *fakeUsageStore) TryIncrement(_ context.Context, userID uuid.UUID, period domain.Period, resource domain.ResourceType, limit domain.Limit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return false, s.fail
	}
	rec, ok := s.records[usageKey(userID, period)]
	if !ok {
		return false, nil
	}
	if !limit.IsUnlimited() && rec.CountFor(resource) >= int64(limit) {
		return false, nil
	}
	switch resource {
	case domain.ResourceDataset:
		rec.DatasetsCount++
	case domain.ResourceAIMessage:
		rec.AIMessagesCount++
	case domain.ResourceReport:
		rec.ReportsCount++
	default:
		return false, domain.Config("fake_usage_store.try_increment", "no counter for resource %q", resource)
	}
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *fakeUsageStore) Get(_ context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	rec, ok := s.records[usageKey(userID, period)]
	if !ok {
		return nil, domain.NotFound("fake_usage_store.get", "usage record", usageKey(userID, period))
	}
	copied := *rec
	return &copied, nil
}

func (s *fakeUsageStore) CountRollovers(_ context.Context, period domain.Period) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	inCurrent := make(map[uuid.UUID]bool)
	before := make(map[uuid.UUID]bool)
	for _, rec := range s.records {
		if rec.Period == period {
			inCurrent[rec.UserID] = true
		} else if rec.Period.Before(period) {
			before[rec.UserID] = true
		}
	}
	var count int64
	for userID := range before {
		if !inCurrent[userID] {
			count++
		}
	}
	return count, nil
}

// recordCount returns the stored counter without copying semantics getting
// in the way; test helper only.
func (s *fakeUsageStore) recordCount(userID uuid.UUID, period domain.Period, resource domain.ResourceType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[usageKey(userID, period)]
	if !ok {
		return 0
	}
	return rec.CountFor(resource)
}

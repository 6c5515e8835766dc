package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Emart29/iOpsAI/internal/auth"
	"github.com/Emart29/iOpsAI/internal/domain"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// memUserStore is an in-memory UserStore for middleware tests.
type memUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("memUserStore.GetByID", "user", id.String())
	}
	cp := *user
	return &cp, nil
}

func (s *memUserStore) Create(ctx context.Context, user *domain.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) UpdateTier(ctx context.Context, id uuid.UUID, tier domain.Tier) error {
	user, ok := s.users[id]
	if !ok {
		return domain.NotFound("memUserStore.UpdateTier", "user", id.String())
	}
	user.Tier = tier
	return nil
}

// captureUser wraps a handler and records the user it saw in context.
func captureUser(seen **domain.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = auth.GetUserFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})
}

// =============================================================================
// WithUser Tests
// =============================================================================

func TestIdentityMiddleware_ResolvesForwardedUser(t *testing.T) {
	store := newMemUserStore()
	user := &domain.User{ID: uuid.New(), Email: "a@example.com", Tier: domain.TierPro}
	store.users[user.ID] = user

	mw := NewIdentityMiddleware(store, discardLogger())

	var seen *domain.User
	wrapped := mw.WithUser(captureUser(&seen))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set(UserIDHeader, user.ID.String())
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if seen == nil {
		t.Fatal("expected user in context")
	}
	if seen.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, seen.ID)
	}
	if seen.Tier != domain.TierPro {
		t.Errorf("expected tier pro, got %s", seen.Tier)
	}
}

func TestIdentityMiddleware_NoHeaderContinuesAnonymous(t *testing.T) {
	mw := NewIdentityMiddleware(newMemUserStore(), discardLogger())

	var seen *domain.User
	wrapped := mw.WithUser(captureUser(&seen))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected pass-through, got %d", rec.Code)
	}
	if seen != nil {
		t.Error("expected no user in context")
	}
}

func TestIdentityMiddleware_MalformedHeaderContinuesAnonymous(t *testing.T) {
	mw := NewIdentityMiddleware(newMemUserStore(), discardLogger())

	var seen *domain.User
	wrapped := mw.WithUser(captureUser(&seen))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set(UserIDHeader, "not-a-uuid")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if seen != nil {
		t.Error("expected no user for malformed header")
	}
}

func TestIdentityMiddleware_UnknownUserContinuesAnonymous(t *testing.T) {
	mw := NewIdentityMiddleware(newMemUserStore(), discardLogger())

	var seen *domain.User
	wrapped := mw.WithUser(captureUser(&seen))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set(UserIDHeader, uuid.New().String())
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if seen != nil {
		t.Error("expected no user for unknown ID")
	}
}

// =============================================================================
// RequireUser Tests
// =============================================================================

func TestRequireUser_RejectsAnonymous(t *testing.T) {
	mw := NewIdentityMiddleware(newMemUserStore(), discardLogger())

	wrapped := mw.RequireUser(okHandler())

	req := httptest.NewRequest("POST", "/api/reports", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got %q", ct)
	}
}

func TestRequireUser_PassesResolvedUser(t *testing.T) {
	mw := NewIdentityMiddleware(newMemUserStore(), discardLogger())

	wrapped := mw.RequireUser(okHandler())

	user := &domain.User{ID: uuid.New(), Tier: domain.TierFree}
	req := httptest.NewRequest("POST", "/api/reports", nil)
	req = req.WithContext(auth.SetUser(req.Context(), user))
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_AppliesInOrder(t *testing.T) {
	var order []string

	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(mk("first"), mk("second"), mk("third"))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	stack(okHandler()).ServeHTTP(rec, req)

	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("unexpected middleware order: %v", order)
	}
}

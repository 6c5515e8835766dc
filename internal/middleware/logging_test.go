package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Emart29/iOpsAI/internal/auth"
	"github.com/Emart29/iOpsAI/internal/domain"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func loggedRequest(t *testing.T, handler http.Handler, req *http.Request) string {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mw := NewRequestLoggingMiddleware(logger)
	rec := httptest.NewRecorder()
	mw.Handler(handler).ServeHTTP(rec, req)

	return buf.String()
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	logOutput := loggedRequest(t, okHandler(), req)

	if !strings.Contains(logOutput, "GET") {
		t.Errorf("log should contain method, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "/api/usage") {
		t.Errorf("log should contain path, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "200") {
		t.Errorf("log should contain status code, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "duration") {
		t.Errorf("log should contain duration, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_LogsClientIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/datasets", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")

	logOutput := loggedRequest(t, okHandler(), req)

	if !strings.Contains(logOutput, "203.0.113.195") {
		t.Errorf("log should contain client IP from X-Forwarded-For, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_LogsUserID(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Tier: domain.TierPro}

	req := httptest.NewRequest("POST", "/api/reports", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req = req.WithContext(auth.SetUser(req.Context(), user))

	logOutput := loggedRequest(t, okHandler(), req)

	if !strings.Contains(logOutput, user.ID.String()) {
		t.Errorf("log should contain resolved user ID, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest("POST", "/api/ai/chat", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	logOutput := loggedRequest(t, handler, req)

	if !strings.Contains(logOutput, "500") {
		t.Errorf("log should contain 500 status, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "level=WARN") && !strings.Contains(logOutput, "level=ERROR") {
		t.Errorf("5xx should log at WARN/ERROR level, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveQueryParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/usage?api_key=secretvalue123", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	logOutput := loggedRequest(t, okHandler(), req)

	if strings.Contains(logOutput, "secretvalue123") {
		t.Errorf("log should NOT contain sensitive value, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "/api/usage") {
		t.Errorf("log should contain path, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_PassesRequestThrough(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response body"))
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mw := NewRequestLoggingMiddleware(logger)

	req := httptest.NewRequest("POST", "/api/reports", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	mw.Handler(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("handler should have been called")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Custom") != "value" {
		t.Error("custom header should be preserved")
	}
	if rec.Body.String() != "response body" {
		t.Errorf("response body should be preserved, got: %s", rec.Body.String())
	}
}

func TestRequestLoggingMiddleware_CapturesWrittenStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/api/missing", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	logOutput := loggedRequest(t, handler, req)

	if !strings.Contains(logOutput, "404") {
		t.Errorf("log should contain 404 status, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_ExcludesNoisyEndpoints(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		req.RemoteAddr = "192.168.1.1:12345"

		logOutput := loggedRequest(t, okHandler(), req)

		if strings.Contains(logOutput, path) {
			t.Errorf("%s should not be logged, got: %s", path, logOutput)
		}
	}
}

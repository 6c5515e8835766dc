// Package handler contains HTTP handlers for the quota service API.
//
// Every metered endpoint follows the same shape: resolve the user, ask the
// quota gate for admission, and only perform the action if admission was
// granted. A denied admission produces the structured 403 refusal; a gate
// failure produces a 5xx, never a denial.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Emart29/iOpsAI/internal/auth"
	"github.com/Emart29/iOpsAI/internal/domain"
	"github.com/Emart29/iOpsAI/internal/metrics"
	"github.com/Emart29/iOpsAI/internal/service"
	"github.com/Emart29/iOpsAI/internal/storage"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// QuotaHandler handles the metered API endpoints and the usage report.
type QuotaHandler struct {
	gate           service.QuotaGate
	files          storage.Storage
	logger         *slog.Logger
	upgradeURL     string
	maxUploadBytes int64
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(
	gate service.QuotaGate,
	files storage.Storage,
	logger *slog.Logger,
	upgradeURL string,
	maxUploadBytes int64,
) *QuotaHandler {
	return &QuotaHandler{
		gate:           gate,
		files:          files,
		logger:         logger,
		upgradeURL:     upgradeURL,
		maxUploadBytes: maxUploadBytes,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all quota-gated routes with the provided mux.
//
// All routes require a resolved user via the requireUser middleware.
//
// Routes:
// - POST /api/datasets  -> UploadDataset (metered: dataset)
// - POST /api/ai/chat   -> Chat          (metered: ai_message)
// - POST /api/reports   -> CreateReport  (metered: report)
// - GET  /api/usage     -> Usage         (read-only, never counted)
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/datasets", requireUser(http.HandlerFunc(h.UploadDataset)))
	mux.Handle("POST /api/ai/chat", requireUser(http.HandlerFunc(h.Chat)))
	mux.Handle("POST /api/reports", requireUser(http.HandlerFunc(h.CreateReport)))
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Usage)))
}

// =============================================================================
// POST /api/datasets - Upload Dataset
// =============================================================================

// datasetResponse is the success body for a dataset upload.
type datasetResponse struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadDataset accepts a multipart dataset upload.
//
// The file must carry an accepted extension (.csv, .xls, .xlsx, .json).
// Input validation runs before the gate so a malformed request never
// consumes quota.
func (h *QuotaHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "handler.UploadDataset",
				"Dataset exceeds the maximum upload size of %d bytes", h.maxUploadBytes))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.UploadDataset", "Failed to parse upload form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.UploadDataset", "Missing dataset file"))
		return
	}
	defer file.Close()

	if !storage.IsAllowedDatasetFilename(header.Filename) {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.UploadDataset",
			"Unsupported dataset format; accepted: .csv, .xls, .xlsx, .json"))
		return
	}

	admission, err := h.gate.Admit(r.Context(), user.ID, domain.ResourceDataset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !admission.Allowed {
		UsageLimitResponse(w, r, h.logger, admission, domain.ResourceDataset, h.upgradeURL)
		return
	}

	contentType := storage.DetectContentType(header.Header.Get("Content-Type"), header.Filename, nil)
	key := storage.DatasetKey(user.ID, header.Filename)

	err = h.files.Put(r.Context(), key, file, storage.PutOptions{
		ContentType: contentType,
		MaxSize:     h.maxUploadBytes,
	})
	if err != nil {
		metrics.DatasetUploadsTotal.WithLabelValues("error").Inc()
		if storage.IsTooLarge(err) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "handler.UploadDataset",
				"Dataset exceeds the maximum upload size of %d bytes", h.maxUploadBytes))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Storage(err, "handler.UploadDataset", "Failed to store dataset"))
		return
	}

	metrics.DatasetUploadsTotal.WithLabelValues("ok").Inc()
	metrics.DatasetUploadBytes.Add(float64(header.Size))

	h.logger.Info("dataset uploaded",
		"user_id", user.ID,
		"key", key,
		"size", header.Size,
		"content_type", contentType,
	)

	writeJSON(w, http.StatusCreated, datasetResponse{
		Key:         key,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
}

// =============================================================================
// POST /api/ai/chat - AI Chat Message
// =============================================================================

// chatRequest is the body for an AI chat message.
type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse acknowledges an accepted AI message.
type chatResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Chat accepts an AI chat message and counts it against the user's monthly
// AI message quota. The actual model call is dispatched downstream; this
// endpoint's job is the admission decision.
func (h *QuotaHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Chat", "Invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Chat", "Message must not be empty"))
		return
	}

	admission, err := h.gate.Admit(r.Context(), user.ID, domain.ResourceAIMessage)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !admission.Allowed {
		UsageLimitResponse(w, r, h.logger, admission, domain.ResourceAIMessage, h.upgradeURL)
		return
	}

	writeJSON(w, http.StatusAccepted, chatResponse{
		Accepted: true,
		Message:  "Message accepted for processing",
	})
}

// =============================================================================
// POST /api/reports - Create Public Report
// =============================================================================

// reportRequest is the body for creating a public report.
type reportRequest struct {
	Title      string `json:"title"`
	DatasetKey string `json:"dataset_key"`
}

// reportResponse is the success body for a created report.
type reportResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// CreateReport publishes a public report shell for a dataset and counts it
// against the user's monthly report quota.
func (h *QuotaHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.CreateReport", "Invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.CreateReport", "Title must not be empty"))
		return
	}
	if req.DatasetKey != "" {
		exists, err := h.files.Exists(r.Context(), req.DatasetKey)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Storage(err, "handler.CreateReport", "Failed to check dataset"))
			return
		}
		if !exists {
			ErrorResponse(w, r, h.logger, domain.NotFound("handler.CreateReport", "dataset", req.DatasetKey))
			return
		}
	}

	admission, err := h.gate.Admit(r.Context(), user.ID, domain.ResourceReport)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !admission.Allowed {
		UsageLimitResponse(w, r, h.logger, admission, domain.ResourceReport, h.upgradeURL)
		return
	}

	key := storage.ReportKey(user.ID)
	body := renderReportShell(req.Title, req.DatasetKey)

	err = h.files.Put(r.Context(), key, strings.NewReader(body), storage.PutOptions{
		ContentType: "text/html; charset=utf-8",
		Public:      true,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Storage(err, "handler.CreateReport", "Failed to publish report"))
		return
	}

	url, err := h.files.URL(r.Context(), key, 0)
	if err != nil {
		// The report exists; a URL failure should not fail the request.
		h.logger.Warn("failed to build report URL", "key", key, "error", err)
		url = ""
	}

	h.logger.Info("report published",
		"user_id", user.ID,
		"key", key,
		"title", req.Title,
	)

	writeJSON(w, http.StatusCreated, reportResponse{
		Key: key,
		URL: url,
	})
}

// renderReportShell produces the static HTML shell of a public report.
// The data visualizations hydrate client-side from the dataset key.
func renderReportShell(title, datasetKey string) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n")
	fmt.Fprintf(&b, "<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	if datasetKey != "" {
		fmt.Fprintf(&b, "<main data-dataset=\"%s\"></main>\n", html.EscapeString(datasetKey))
	} else {
		b.WriteString("<main></main>\n")
	}
	fmt.Fprintf(&b, "<footer>Published %s</footer>\n", time.Now().UTC().Format("2006-01-02"))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// =============================================================================
// GET /api/usage - Usage Report
// =============================================================================

// Usage returns the current period's usage for the authenticated user.
// Reading usage never consumes quota.
func (h *QuotaHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	snapshot, err := h.gate.Snapshot(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// =============================================================================
// Response Helpers
// =============================================================================

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

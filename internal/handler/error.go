package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Emart29/iOpsAI/internal/domain"
)

// ErrorResponse writes an error response to the client as a JSON envelope.
// It maps domain error codes to HTTP status codes and hides internal detail
// for server-side failures.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)

	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, op, status)

	writeJSONError(w, status, code, message)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.ECONFIG, domain.ESTORAGE, domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	case domain.ENOTIMPL:
		return http.StatusNotImplemented // 501
	default:
		return http.StatusInternalServerError // 500
	}
}

// usageLimitDetails is the details object of a quota denial. Its shape is a
// compatibility contract with client integrations and must not change.
type usageLimitDetails struct {
	ResourceType string `json:"resource_type"`
	Tier         string `json:"tier"`
	UpgradeURL   string `json:"upgrade_url"`
}

// UsageLimitResponse writes the structured 403 refusal for a denied
// admission:
//
//	{"error": {"code": "USAGE_LIMIT_EXCEEDED", "message": ...,
//	           "details": {"resource_type", "tier", "upgrade_url"}}}
func UsageLimitResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, admission *domain.Admission, resource domain.ResourceType, upgradeURL string) {
	logger.Info("usage limit exceeded",
		"path", r.URL.Path,
		"resource", resource,
		"tier", admission.Tier,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "USAGE_LIMIT_EXCEEDED",
			"message": admission.Message,
			"details": usageLimitDetails{
				ResourceType: string(resource),
				Tier:         string(admission.Tier),
				UpgradeURL:   upgradeURL,
			},
		},
	})
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required")
	ErrorResponse(w, r, logger, err)
}

// writeJSONError writes a JSON error envelope with the given status.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

// logError logs the error with appropriate level based on status code.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}

	if op != "" {
		attrs = append(attrs, "op", op)
	}

	// 5xx are server-side problems; 4xx are expected client errors.
	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

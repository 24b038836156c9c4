package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kalambet/feedtrack/internal/assistant"
	"github.com/kalambet/feedtrack/internal/feedback"
	"github.com/kalambet/feedtrack/internal/proxy"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Error kinds carried in the "type" field of every error body.
const (
	errValidation     = "validation_error"
	errNotFound       = "not_found"
	errStorage        = "storage_error"
	errConfiguration  = "configuration_error"
	errAuthentication = "authentication_error"
	errRateLimit      = "rate_limit_error"
	errAPI            = "api_error"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]string{
		"error": fmt.Sprintf(format, args...),
		"type":  errType,
	})
}

// feedbackError maps a feedback service error to a response. op names the
// failed operation in the generic storage message ("create", "update", ...).
func feedbackError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *feedback.ValidationError
	switch {
	case errors.As(err, &verr):
		httpError(w, http.StatusBadRequest, errValidation, "%s", verr.Msg)
	case errors.Is(err, feedback.ErrNotFound):
		httpError(w, http.StatusNotFound, errNotFound, "Feedback not found")
	default:
		slog.Error("feedback operation failed", "op", op, "path", r.URL.Path, "error", err)
		if op == "read" {
			httpError(w, http.StatusInternalServerError, errStorage, "Failed to read feedback")
			return
		}
		httpError(w, http.StatusInternalServerError, errStorage, "Failed to %s feedback", op)
	}
}

// askError maps an AnswerProvider error to a response.
func askError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		httpError(w, http.StatusBadRequest, errValidation, "Question is required")
	case errors.Is(err, assistant.ErrNotConfigured):
		httpError(w, http.StatusInternalServerError, errConfiguration, "AI API key not configured")
	case errors.Is(err, proxy.ErrUnauthorized):
		httpError(w, http.StatusUnauthorized, errAuthentication, "Invalid AI service API key")
	case errors.Is(err, proxy.ErrRateLimited):
		httpError(w, http.StatusTooManyRequests, errRateLimit, "Rate limit exceeded. Please try again later.")
	default:
		slog.Error("AI request failed", "error", err)
		httpError(w, http.StatusInternalServerError, errAPI, "Failed to get AI response")
	}
}

// decodeBody reads a JSON request body of at most maxRequestBodySize bytes
// into v, writing a 400 response on failure. An empty body leaves v as is.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, errValidation, "Request body too large")
			return false
		}
		slog.Debug("rejecting request body", "path", r.URL.Path, "error", err)
		httpError(w, http.StatusBadRequest, errValidation, "Invalid JSON request body")
		return false
	}
	return true
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xhad/instructai/pkg/answer"
	"github.com/xhad/instructai/pkg/ingest"
	"github.com/xhad/instructai/pkg/scraper"
	"github.com/xhad/instructai/pkg/store"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// statusFor classifies err as a client or server failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrInvalidURL),
		errors.Is(err, answer.ErrEmptyQuery),
		errors.Is(err, scraper.ErrSitemapFormat),
		errors.Is(err, scraper.ErrFetch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrEmptyIndex):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "status", status, "detail", detail,
			"correlation_id", correlationID(r.Context()))
	}
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

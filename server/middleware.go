package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const correlationKey ctxKey = 0

const (
	HeaderAPIKey        = "x-api-key"
	HeaderCorrelationID = "X-Correlation-ID"
)

// CorrelationID tags each request with an id, taken from the request header
// when present, and logs its start and completion.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), correlationKey, id)
		w.Header().Set(HeaderCorrelationID, id)

		slog.Info("request received", "method", r.Method, "path", r.URL.Path, "correlation_id", id)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		slog.Info("request completed", "method", r.Method, "path", r.URL.Path, "correlation_id", id, "duration", time.Since(start))
	})
}

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return "unknown"
}

// RequireAPIKey rejects requests whose x-api-key header does not match key.
// With no key configured every request fails with 500.
func RequireAPIKey(key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key == "" {
			slog.Error("api key is not configured", "correlation_id", correlationID(r.Context()))
			writeError(w, r, http.StatusInternalServerError, "API key is not configured on the server")
			return
		}

		got := r.Header.Get(HeaderAPIKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			slog.Warn("rejected request with invalid api key", "path", r.URL.Path, "correlation_id", correlationID(r.Context()))
			writeError(w, r, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package server exposes ingestion and querying over HTTP and websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xhad/instructai/internal/models"
	"github.com/xhad/instructai/pkg/answer"
)

type Ingester interface {
	Upload(ctx context.Context, url string) (models.UploadSummary, error)
}

type Answerer interface {
	AnswerStream(ctx context.Context, query, sessionID string, onChunk func(chunk string) error) (*answer.Answer, error)
}

// IndexStats reports the size of the index for the health endpoint.
type IndexStats interface {
	Len() int
	Dimension() int
}

type Config struct {
	Port         int
	APIKey       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	config   Config
	ingester Ingester
	answerer Answerer
	stats    IndexStats
}

func New(config Config, ingester Ingester, answerer Answerer, stats IndexStats) *Server {
	if config.Port == 0 {
		config.Port = 8000
	}
	return &Server{
		config:   config,
		ingester: ingester,
		answerer: answerer,
		stats:    stats,
	}
}

type ingestRequest struct {
	URL string `json:"url"`
}

type ingestResponse struct {
	Message string `json:"message"`
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer *answer.Answer `json:"answer"`
}

// Handler returns the routed handler with correlation ids and api key checks
// applied. /health is the only unauthenticated route.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("POST /ingestion/url", s.handleIngest)
	protected.HandleFunc("POST /instructai/query", s.handleQuery)
	protected.HandleFunc("GET /ws", s.handleWebSocket)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/", RequireAPIKey(s.config.APIKey, protected))

	return CorrelationID(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"chunks":    s.stats.Len(),
		"dimension": s.stats.Dimension(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	summary, err := s.ingester.Upload(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	if summary.Failed > 0 {
		slog.Warn("ingestion finished with skipped urls", "url", req.URL, "failed", summary.Failed,
			"correlation_id", correlationID(r.Context()))
	}
	writeJSON(w, http.StatusOK, ingestResponse{Message: summary.Message})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ans, err := s.answerer.AnswerStream(r.Context(), req.Query, req.SessionID, nil)
	if err != nil {
		status := statusFor(err)
		detail := err.Error()
		if status >= http.StatusInternalServerError {
			detail = "Error querying InstructAI: " + detail
		}
		writeError(w, r, status, detail)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Answer: ans})
}

// Package answer composes retrieval and generation into a query response.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xhad/instructai/internal/models"
	"github.com/xhad/instructai/internal/types"
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query must not be empty")

// ChatModel generates the text parts of an answer.
type ChatModel interface {
	AnswerStream(ctx context.Context, query string, docs []models.SearchResult, onChunk func(chunk string) error) (string, error)
	Reformulate(ctx context.Context, query, history string) (string, error)
	RelatedQueries(ctx context.Context, query, answer string) ([]string, error)
}

// Answer is the response to one query.
type Answer struct {
	Answer          string   `json:"answer"`
	SourceDocuments []string `json:"source_documents"`
	RelQueries      []string `json:"rel_queries"`
}

type Service struct {
	retriever types.Retriever
	chat      ChatModel
	history   *History
}

func New(retriever types.Retriever, chat ChatModel) *Service {
	return &Service{
		retriever: retriever,
		chat:      chat,
		history:   NewHistory(),
	}
}

func (s *Service) History() *History { return s.history }

// Answer retrieves context for query and generates a response. Retrieval
// errors, including an empty index, are returned unchanged.
func (s *Service) Answer(ctx context.Context, query, sessionID string) (*Answer, error) {
	return s.AnswerStream(ctx, query, sessionID, nil)
}

// AnswerStream is Answer with onChunk receiving the answer text as it is
// generated.
func (s *Service) AnswerStream(ctx context.Context, query, sessionID string, onChunk func(chunk string) error) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	query = s.reformulate(ctx, query, sessionID)

	results, err := s.retriever.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	text, err := s.chat.AnswerStream(ctx, query, results, onChunk)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	related, err := s.chat.RelatedQueries(ctx, query, text)
	if err != nil {
		slog.Warn("related queries failed", "session_id", sessionID, "error", err)
		related = []string{}
	}

	s.history.Append(sessionID,
		Entry{Role: RoleUser, Text: query},
		Entry{Role: RoleAI, Text: text},
	)

	return &Answer{
		Answer:          text,
		SourceDocuments: DistinctSources(results),
		RelQueries:      related,
	}, nil
}

// reformulate rewrites query against the session history once the session
// holds at least one full exchange. Failures fall back to the original.
func (s *Service) reformulate(ctx context.Context, query, sessionID string) string {
	history := s.history.Get(sessionID)
	if len(history) < 2 {
		return query
	}

	rewritten, err := s.chat.Reformulate(ctx, query, FormatHistory(history))
	if err != nil {
		slog.Warn("query reformulation failed, using original", "session_id", sessionID, "error", err)
		return query
	}
	slog.Debug("query reformulated", "session_id", sessionID, "original", query, "rewritten", rewritten)
	return rewritten
}

// DistinctSources returns each result's source once, in retrieval order.
func DistinctSources(results []models.SearchResult) []string {
	sources := []string{}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		src := r.Chunk.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}

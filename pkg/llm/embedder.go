package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Timeout   time.Duration
	RateLimit float64 // calls per second
}

// Embedder bounds every embedding call with a timeout and a rate limit and
// reports failures as *EmbedError. It satisfies embeddings.Embedder.
type Embedder struct {
	config  EmbedderConfig
	client  embeddings.Embedder
	limiter *rate.Limiter
}

var _ embeddings.Embedder = (*Embedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	config = embedderDefaults(config)

	emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return NewEmbedderFromClient(emb, config)
}

// NewEmbedderFromClient wraps any langchaingo embedding client.
func NewEmbedderFromClient(client embeddings.EmbedderClient, config EmbedderConfig) (*Embedder, error) {
	config = embedderDefaults(config)

	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config:  config,
		client:  impl,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func embedderDefaults(config EmbedderConfig) EmbedderConfig {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 20
	}
	return config
}

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, e.fail(errors.New("empty input text"))
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, e.fail(err)
	}

	vector, err := e.client.EmbedQuery(ctx, text)
	if err != nil {
		return nil, e.fail(err)
	}
	if len(vector) == 0 {
		return nil, e.fail(errors.New("model returned an empty vector"))
	}
	return vector, nil
}

// EmbedDocuments embeds texts one call at a time so that a single bad input
// fails only its own position.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (e *Embedder) fail(err error) error {
	return &EmbedError{Model: e.config.Model, Err: err}
}

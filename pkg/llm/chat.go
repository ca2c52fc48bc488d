package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/instructai/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	BaseURL          string // Ollama server URL
	AnswerTemplate   string
	ReformatTemplate string
	RelatedTemplate  string
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config   ChatConfig
	llm      llms.Model
	answer   prompts.PromptTemplate
	reformat prompts.PromptTemplate
	related  prompts.PromptTemplate
}

// NewWithConfig creates a new ChatEngine backed by an Ollama model.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(llm, config)
}

// NewWithModel creates a ChatEngine around an already constructed model.
func NewWithModel(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	return &ChatEngine{
		config:   config,
		llm:      model,
		answer:   newTemplate(config.AnswerTemplate, DefaultAnswerTemplate, "question", "context"),
		reformat: newTemplate(config.ReformatTemplate, DefaultReformatTemplate, "question", "chat_history"),
		related:  newTemplate(config.RelatedTemplate, DefaultRelatedTemplate, "question", "answer"),
	}, nil
}

// Answer generates a response to query grounded on the retrieved chunks.
func (ce *ChatEngine) Answer(ctx context.Context, query string, docs []models.SearchResult) (string, error) {
	return ce.AnswerStream(ctx, query, docs, nil)
}

// AnswerStream is Answer with onChunk invoked for every streamed piece of the
// response. A nil onChunk disables streaming.
func (ce *ChatEngine) AnswerStream(ctx context.Context, query string, docs []models.SearchResult, onChunk func(chunk string) error) (string, error) {
	prompt, err := ce.answer.Format(map[string]any{
		"question": query,
		"context":  formatContext(docs),
	})
	if err != nil {
		return "", fmt.Errorf("format answer prompt: %w", err)
	}

	var opts []llms.CallOption
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		}))
	}

	response, err := ce.generate(ctx, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	return response, nil
}

// Reformulate rewrites query so it stands alone given the session history.
func (ce *ChatEngine) Reformulate(ctx context.Context, query, history string) (string, error) {
	prompt, err := ce.reformat.Format(map[string]any{
		"question":     query,
		"chat_history": history,
	})
	if err != nil {
		return "", fmt.Errorf("format reformulation prompt: %w", err)
	}

	response, err := ce.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("reformulate query: %w", err)
	}
	if response = strings.TrimSpace(response); response == "" {
		return "", errors.New("reformulate query: empty response")
	}
	return response, nil
}

// RelatedQueries asks the model for follow-up questions.
func (ce *ChatEngine) RelatedQueries(ctx context.Context, query, answer string) ([]string, error) {
	prompt, err := ce.related.Format(map[string]any{
		"question": query,
		"answer":   answer,
	})
	if err != nil {
		return nil, fmt.Errorf("format related queries prompt: %w", err)
	}

	response, err := ce.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("related queries: %w", err)
	}
	return SplitRelatedQueries(response), nil
}

func (ce *ChatEngine) generate(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	opts = append(opts,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	return llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, opts...)
}

// SplitRelatedQueries splits a '||' separated list, dropping blanks.
func SplitRelatedQueries(text string) []string {
	queries := []string{}
	for _, q := range strings.Split(text, "||") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

func formatContext(docs []models.SearchResult) string {
	var contextBuilder strings.Builder

	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", doc.Chunk.Source(), doc.Chunk.Text))
	}

	return contextBuilder.String()
}

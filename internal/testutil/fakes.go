// Package testutil holds deterministic stand-ins for the embedding and chat
// models used across package tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ErrFakeEmbed is returned by FakeEmbedder for texts listed in Fail.
var ErrFakeEmbed = errors.New("fake embedder failure")

// FakeEmbedder maps text to a deterministic vector. Vectors registers exact
// outputs for given texts; Fail lists texts that error.
type FakeEmbedder struct {
	Dim     int
	Vectors map[string][]float32
	Fail    map[string]bool

	mu    sync.Mutex
	calls []string
}

func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{
		Dim:     dim,
		Vectors: map[string][]float32{},
		Fail:    map[string]bool{},
	}
}

func (f *FakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)

	if f.Fail[text] {
		return nil, ErrFakeEmbed
	}
	if v, ok := f.Vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return HashVector(text, f.Dim), nil
}

func (f *FakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// CreateEmbedding lets the fake stand in for a langchaingo EmbedderClient.
func (f *FakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return f.EmbedDocuments(ctx, texts)
}

// Calls returns the texts embedded so far.
func (f *FakeEmbedder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// HashVector derives a stable pseudo-random vector from text.
func HashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000) / 1000
	}
	return v
}

// FakeModel is an llms.Model whose reply is chosen by Respond.
type FakeModel struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

var _ llms.Model = (*FakeModel)(nil)

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt.String())
	m.mu.Unlock()

	reply := "ok"
	if m.Respond != nil {
		var err error
		if reply, err = m.Respond(prompt.String()); err != nil {
			return nil, err
		}
	}

	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(reply, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Prompts returns every prompt the model has received.
func (m *FakeModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

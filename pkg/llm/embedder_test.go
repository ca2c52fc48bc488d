package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/instructai/internal/testutil"
	"github.com/xhad/instructai/pkg/llm"
)

var config = llm.EmbedderConfig{
	Model:     "nomic-embed-text:latest",
	BaseURL:   "http://localhost:11434",
	Timeout:   time.Second,
	RateLimit: 1000,
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(config)
	assert.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestEmbedQuery(t *testing.T) {
	fake := testutil.NewFakeEmbedder(8)
	emb, err := llm.NewEmbedderFromClient(fake, config)
	require.NoError(t, err)

	vector, err := emb.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vector, 8)
	assert.Equal(t, testutil.HashVector("hello world", 8), vector)
}

func TestEmbedQueryFailures(t *testing.T) {
	fake := testutil.NewFakeEmbedder(8)
	fake.Fail["quota"] = true
	fake.Vectors["empty"] = []float32{}

	emb, err := llm.NewEmbedderFromClient(fake, config)
	require.NoError(t, err)

	for _, text := range []string{"quota", "empty", "   "} {
		t.Run(text, func(t *testing.T) {
			_, err := emb.EmbedQuery(context.Background(), text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, llm.ErrEmbed))

			var ee *llm.EmbedError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, config.Model, ee.Model)
		})
	}
}

func TestEmbedQueryHonoursCancellation(t *testing.T) {
	emb, err := llm.NewEmbedderFromClient(testutil.NewFakeEmbedder(4), config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = emb.EmbedQuery(ctx, "text")
	assert.ErrorIs(t, err, llm.ErrEmbed)
}

func TestEmbedDocuments(t *testing.T) {
	fake := testutil.NewFakeEmbedder(4)
	emb, err := llm.NewEmbedderFromClient(fake, config)
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []string{"a", "b"}, fake.Calls())

	fake.Fail["c"] = true
	_, err = emb.EmbedDocuments(context.Background(), []string{"a", "c"})
	assert.ErrorIs(t, err, llm.ErrEmbed)
}

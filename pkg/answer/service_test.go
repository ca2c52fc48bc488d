package answer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/instructai/internal/models"
	"github.com/xhad/instructai/internal/testutil"
	"github.com/xhad/instructai/pkg/llm"
	"github.com/xhad/instructai/pkg/store"
)

type scriptedModel struct {
	reformulated string
	relatedErr   error
}

func (m scriptedModel) respond(prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "Role: query reformulation"):
		return m.reformulated, nil
	case strings.HasPrefix(prompt, "Role: related query"):
		if m.relatedErr != nil {
			return "", m.relatedErr
		}
		return "What is alpha? || How does beta work?||", nil
	default:
		return "The answer is alpha.", nil
	}
}

func newService(t *testing.T, model scriptedModel, docs ...models.Document) (*Service, *testutil.FakeModel) {
	t.Helper()
	ctx := context.Background()

	emb := testutil.NewFakeEmbedder(3)
	emb.Vectors["a1"] = []float32{1, 0, 0}
	emb.Vectors["a2"] = []float32{1, 0.1, 0}
	emb.Vectors["b1"] = []float32{0, 1, 0}
	emb.Vectors["alpha question"] = []float32{1, 0, 0}
	emb.Vectors["rewritten"] = []float32{0, 1, 0}

	vs, err := store.Open(ctx, store.Config{}, emb, store.NewFileSnapshotter(filepath.Join(t.TempDir(), "index.snapshot")))
	require.NoError(t, err)
	if len(docs) > 0 {
		_, err = vs.IndexDocuments(ctx, docs)
		require.NoError(t, err)
	}

	fake := &testutil.FakeModel{Respond: model.respond}
	chat, err := llm.NewWithModel(fake, llm.ChatConfig{Temperature: 0.2})
	require.NoError(t, err)

	return New(vs.AsRetriever(3), chat), fake
}

func corpus() []models.Document {
	src := func(text, source string) models.Document {
		return models.Document{Text: text, Metadata: map[string]string{models.MetadataSource: source}}
	}
	return []models.Document{
		src("a1", "http://x/a"),
		src("b1", "http://x/b"),
		src("a2", "http://x/a"),
	}
}

func TestAnswer(t *testing.T) {
	svc, fake := newService(t, scriptedModel{}, corpus()...)

	ans, err := svc.Answer(context.Background(), "alpha question", "s1")
	require.NoError(t, err)
	assert.Equal(t, "The answer is alpha.", ans.Answer)
	assert.Equal(t, []string{"http://x/a", "http://x/b"}, ans.SourceDocuments)
	assert.Equal(t, []string{"What is alpha?", "How does beta work?"}, ans.RelQueries)

	prompts := fake.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "alpha question")
	assert.Contains(t, prompts[0], "Source: http://x/a\na1")

	assert.Equal(t, []Entry{
		{Role: RoleUser, Text: "alpha question"},
		{Role: RoleAI, Text: "The answer is alpha."},
	}, svc.History().Get("s1"))
}

func TestAnswerReformulatesWithHistory(t *testing.T) {
	svc, fake := newService(t, scriptedModel{reformulated: "rewritten"}, corpus()...)
	ctx := context.Background()

	_, err := svc.Answer(ctx, "alpha question", "s1")
	require.NoError(t, err)

	ans, err := svc.Answer(ctx, "and the other one?", "s1")
	require.NoError(t, err)
	assert.Equal(t, "http://x/b", ans.SourceDocuments[0])

	prompts := fake.Prompts()
	require.Len(t, prompts, 5)
	assert.Contains(t, prompts[2], "User: alpha question\nAI: The answer is alpha.")

	history := svc.History().Get("s1")
	require.Len(t, history, 4)
	assert.Equal(t, "rewritten", history[2].Text)

	// Other sessions are untouched.
	assert.Empty(t, svc.History().Get("s2"))
}

func TestAnswerRelatedQueriesFailure(t *testing.T) {
	svc, _ := newService(t, scriptedModel{relatedErr: errors.New("model down")}, corpus()...)

	ans, err := svc.Answer(context.Background(), "alpha question", "s1")
	require.NoError(t, err)
	assert.NotNil(t, ans.RelQueries)
	assert.Empty(t, ans.RelQueries)
}

func TestAnswerEmptyIndex(t *testing.T) {
	svc, fake := newService(t, scriptedModel{})

	_, err := svc.Answer(context.Background(), "alpha question", "s1")
	assert.ErrorIs(t, err, store.ErrEmptyIndex)
	assert.Empty(t, fake.Prompts())
	assert.Empty(t, svc.History().Get("s1"))
}

func TestAnswerEmptyQuery(t *testing.T) {
	svc, _ := newService(t, scriptedModel{}, corpus()...)

	_, err := svc.Answer(context.Background(), "   ", "s1")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAnswerStream(t *testing.T) {
	svc, _ := newService(t, scriptedModel{}, corpus()...)

	var streamed strings.Builder
	ans, err := svc.AnswerStream(context.Background(), "alpha question", "s1", func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ans.Answer, streamed.String())
}

func TestDistinctSources(t *testing.T) {
	result := func(source string) models.SearchResult {
		return models.SearchResult{Chunk: models.Chunk{Metadata: map[string]string{models.MetadataSource: source}}}
	}

	assert.Equal(t, []string{}, DistinctSources(nil))
	assert.Equal(t,
		[]string{"c", "a", "b"},
		DistinctSources([]models.SearchResult{result("c"), result("a"), result("c"), result("b"), result("a")}))
}

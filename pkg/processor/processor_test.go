package processor_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/instructai/internal/models"
	"github.com/xhad/instructai/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      60,
		ChunkOverlap:   10,
		MinChunkLength: 5,
	})

	pages := []models.Page{
		{
			URL:     "http://x/a",
			Title:   "A",
			Content: strings.Repeat("This is a test sentence about indexing. ", 6),
			Metadata: map[string]string{
				"source":        "http://x/a",
				"title":         "A",
				"last_modified": "",
			},
		},
	}

	docs := p.Process(pages)
	require.Greater(t, len(docs), 1)

	for i, doc := range docs {
		assert.NotEmpty(t, doc.Text)
		assert.LessOrEqual(t, len(doc.Text), 60)
		assert.Equal(t, "http://x/a", doc.Metadata["source"])
		assert.Equal(t, "A", doc.Metadata["title"])
		assert.Equal(t, strconv.Itoa(i), doc.Metadata["chunk_index"])
		assert.NotContains(t, doc.Metadata, "last_modified")
	}
}

func TestProcessor_ShortPageIsOneChunk(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{MinChunkLength: 100})

	docs := p.Process([]models.Page{{URL: "http://x/short", Content: "  tiny \n page  "}})
	require.Len(t, docs, 1)
	assert.Equal(t, "tiny page", docs[0].Text)
	assert.Equal(t, "http://x/short", docs[0].Metadata["source"])
}

func TestProcessor_SkipsEmptyPages(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	docs := p.Process([]models.Page{{URL: "http://x/empty", Content: " \n\t "}})
	assert.Empty(t, docs)
}

func TestProcessor_SourceAlwaysPageURL(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	docs := p.Process([]models.Page{{
		URL:      "http://x/b",
		Content:  "Some content for page b.",
		Metadata: map[string]string{"source": "http://elsewhere"},
	}})
	require.Len(t, docs, 1)
	assert.Equal(t, "http://x/b", docs[0].Metadata["source"])
}

func TestProcessor_DropsInvalidUTF8(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	docs := p.Process([]models.Page{{URL: "http://x/c", Content: "valid \xff text"}})
	require.Len(t, docs, 1)
	assert.Equal(t, "valid text", docs[0].Text)
}

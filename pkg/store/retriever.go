package store

import (
	"context"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/instructai/internal/models"
)

// Retriever is a read-only handle over a VectorStore with a fixed k.
type Retriever struct {
	store *VectorStore
	k     int
}

var _ schema.Retriever = (*Retriever)(nil)

// AsRetriever returns a query-only handle. k <= 0 uses the store default.
func (vs *VectorStore) AsRetriever(k int) *Retriever {
	if k <= 0 {
		k = vs.config.DefaultK
	}
	return &Retriever{store: vs, k: k}
}

func (r *Retriever) K() int { return r.k }

// Query returns the retriever's k nearest chunks for text.
func (r *Retriever) Query(ctx context.Context, text string) ([]models.SearchResult, error) {
	return r.store.Query(ctx, text, r.k)
}

// GetRelevantDocuments adapts Query to langchaingo chains. Score carries the
// L2 distance, so lower is closer.
func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	results, err := r.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, len(results))
	for i, res := range results {
		metadata := make(map[string]any, len(res.Chunk.Metadata)+1)
		for k, v := range res.Chunk.Metadata {
			metadata[k] = v
		}
		metadata["id"] = res.Chunk.ID

		docs[i] = schema.Document{
			PageContent: res.Chunk.Text,
			Metadata:    metadata,
			Score:       res.Distance,
		}
	}
	return docs, nil
}

package types

import (
	"context"

	"github.com/xhad/instructai/internal/models"
)

// Core interfaces

type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]models.Page, error)
}

type SitemapFetcher interface {
	SitemapURLs(ctx context.Context, sitemapURL string) ([]string, error)
}

type Processor interface {
	Process(pages []models.Page) []models.Document
}

type DocumentIndexer interface {
	IndexDocuments(ctx context.Context, docs []models.Document) (models.IndexReport, error)
	Persist(ctx context.Context) error
}

type Retriever interface {
	Query(ctx context.Context, text string) ([]models.SearchResult, error)
}

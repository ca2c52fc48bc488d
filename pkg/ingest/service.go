// Package ingest turns a submitted URL into indexed documents. A URL ending
// in .xml is treated as a sitemap and expanded; anything else is a single page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xhad/instructai/internal/models"
	"github.com/xhad/instructai/internal/types"
	"github.com/xhad/instructai/pkg/store"
)

type ServiceConfig struct {
	// AllowedPrefixes filters sitemap entries. Empty accepts every URL.
	AllowedPrefixes []string
	// Workers bounds concurrent page fetches inside a sitemap. Values below
	// 2 process URLs sequentially in sitemap order.
	Workers    int
	OnProgress func(Progress)
}

// Progress is reported once per sitemap entry as it finishes.
type Progress struct {
	URL    string
	Done   int
	Total  int
	Chunks int
	Err    error
}

type Service struct {
	fetcher   types.PageFetcher
	sitemaps  types.SitemapFetcher
	processor types.Processor
	indexer   types.DocumentIndexer
	config    ServiceConfig
}

func NewWithConfig(fetcher types.PageFetcher, sitemaps types.SitemapFetcher, processor types.Processor, indexer types.DocumentIndexer, config ServiceConfig) *Service {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Service{
		fetcher:   fetcher,
		sitemaps:  sitemaps,
		processor: processor,
		indexer:   indexer,
		config:    config,
	}
}

// IsSitemap reports whether rawURL names a sitemap.
func IsSitemap(rawURL string) bool {
	return strings.HasSuffix(strings.ToLower(rawURL), ".xml")
}

// Upload fetches and indexes rawURL. Failures of the root URL or sitemap are
// returned as *IngestionError. Failures of individual sitemap entries are
// logged and counted in the summary but never fail the call.
func (s *Service) Upload(ctx context.Context, rawURL string) (models.UploadSummary, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateURL(rawURL); err != nil {
		return models.UploadSummary{}, &IngestionError{URL: rawURL, Err: err}
	}

	if IsSitemap(rawURL) {
		return s.uploadSitemap(ctx, rawURL)
	}
	return s.uploadPage(ctx, rawURL)
}

func (s *Service) uploadPage(ctx context.Context, pageURL string) (models.UploadSummary, error) {
	slog.Info("processing url", "url", pageURL)

	summary := models.UploadSummary{URLs: 1}
	chunks, err := s.indexURL(ctx, pageURL)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		summary.Failed = 1
		return summary, &IngestionError{URL: pageURL, Err: err}
	}

	// A persist failure leaves the chunks live in memory, so the page counts.
	summary.Succeeded = 1
	summary.Chunks = chunks
	summary.Message = fmt.Sprintf("Successfully indexed documents from %s", pageURL)
	slog.Info("url indexed", "url", pageURL, "chunks", chunks)
	return summary, err
}

func (s *Service) uploadSitemap(ctx context.Context, sitemapURL string) (models.UploadSummary, error) {
	slog.Info("processing sitemap", "url", sitemapURL)

	entries, err := s.sitemaps.SitemapURLs(ctx, sitemapURL)
	if err != nil {
		return models.UploadSummary{}, &IngestionError{URL: sitemapURL, Err: err}
	}
	urls := s.filter(entries)
	slog.Info("sitemap expanded", "url", sitemapURL, "entries", len(entries), "allowed", len(urls))

	// Once expanded, the batch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	var (
		mu         sync.Mutex
		summary    = models.UploadSummary{URLs: len(urls)}
		persistFailed bool
	)

	record := func(u string, chunks int, err error) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil:
			summary.Succeeded++
			summary.Chunks += chunks
		case errors.Is(err, store.ErrPersist):
			// Indexed in memory; the final save below covers it.
			summary.Succeeded++
			summary.Chunks += chunks
			persistFailed = true
		default:
			summary.Failed++
			slog.Warn("skipping sitemap entry", "url", u, "error", err)
		}

		if s.config.OnProgress != nil {
			s.config.OnProgress(Progress{
				URL:    u,
				Done:   summary.Succeeded + summary.Failed,
				Total:  summary.URLs,
				Chunks: chunks,
				Err:    err,
			})
		}
	}

	if s.config.Workers > 1 {
		g := new(errgroup.Group)
		g.SetLimit(s.config.Workers)
		for _, u := range urls {
			g.Go(func() error {
				chunks, err := s.indexURL(ctx, u)
				record(u, chunks, err)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, u := range urls {
			slog.Info("processing url from sitemap", "url", u)
			chunks, err := s.indexURL(ctx, u)
			record(u, chunks, err)
		}
	}

	summary.Message = fmt.Sprintf("Successfully indexed documents from sitemap %s", sitemapURL)
	slog.Info("sitemap indexed", "url", sitemapURL,
		"succeeded", summary.Succeeded, "failed", summary.Failed, "chunks", summary.Chunks)

	if persistFailed {
		// Saves from concurrent workers can finish in any order, so write
		// every committed batch once more rather than trust the last record.
		if err := s.indexer.Persist(ctx); err != nil {
			slog.Error("sitemap snapshot not saved", "url", sitemapURL, "error", err)
			return summary, err
		}
	}
	return summary, nil
}

// indexURL fetches, splits and indexes one URL, returning the number of
// chunks stored. A *store.PersistError still reports the stored count.
func (s *Service) indexURL(ctx context.Context, pageURL string) (int, error) {
	pages, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	docs := s.processor.Process(pages)
	if len(docs) == 0 {
		return 0, fmt.Errorf("no indexable text at %s", pageURL)
	}

	report, err := s.indexer.IndexDocuments(ctx, docs)
	if err != nil {
		return report.Indexed, err
	}
	if report.Indexed == 0 {
		return 0, fmt.Errorf("none of %d documents from %s could be indexed", len(docs), pageURL)
	}
	if report.Failed > 0 {
		slog.Warn("some documents were not indexed", "url", pageURL, "indexed", report.Indexed, "failed", report.Failed)
	}
	return report.Indexed, nil
}

func (s *Service) filter(urls []string) []string {
	if len(s.config.AllowedPrefixes) == 0 {
		return urls
	}

	var kept []string
	for _, u := range urls {
		for _, prefix := range s.config.AllowedPrefixes {
			if strings.HasPrefix(u, prefix) {
				kept = append(kept, u)
				break
			}
		}
	}
	return kept
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s is not an absolute http(s) url", ErrInvalidURL, rawURL)
	}
	return nil
}

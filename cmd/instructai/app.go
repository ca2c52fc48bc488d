package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xhad/instructai/pkg/answer"
	cfgPkg "github.com/xhad/instructai/pkg/config"
	"github.com/xhad/instructai/pkg/ingest"
	"github.com/xhad/instructai/pkg/llm"
	"github.com/xhad/instructai/pkg/processor"
	"github.com/xhad/instructai/pkg/scraper"
	"github.com/xhad/instructai/pkg/store"
)

// app holds the wired components shared by every subcommand.
type app struct {
	config  *cfgPkg.Config
	store   *store.VectorStore
	ingest  *ingest.Service
	answers *answer.Service
}

type appOptions struct {
	onPage     func(url string)
	onProgress func(ingest.Progress)
}

func newApp(ctx context.Context, cfg *cfgPkg.Config, opts appOptions) (*app, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbeddingModel,
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   cfg.Embedder.Timeout,
		RateLimit: cfg.Embedder.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	snap, err := newSnapshotter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	vectorStore, err := store.Open(ctx, store.Config{DefaultK: cfg.Store.DefaultK}, embedder, snap)
	if err != nil {
		return nil, err
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		Timeout:          cfg.LLM.Timeout,
		BaseURL:          cfg.LLM.BaseURL,
		AnswerTemplate:   cfg.Prompts.Answer,
		ReformatTemplate: cfg.Prompts.Reformat,
		RelatedTemplate:  cfg.Prompts.Related,
	})
	if err != nil {
		vectorStore.Close()
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	sc := scraper.NewWithConfig(scraper.ScraperConfig{
		MaxDepth:          cfg.Scraper.MaxDepth,
		RateLimit:         cfg.Scraper.RateLimit,
		IgnorePatterns:    cfg.Scraper.IgnorePatterns,
		AllowedExtensions: cfg.Scraper.AllowedExtensions,
		Timeout:           cfg.Scraper.Timeout,
		OnProgress:        opts.onPage,
	})

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      cfg.Processor.ChunkSize,
		ChunkOverlap:   cfg.Processor.ChunkOverlap,
		MinChunkLength: cfg.Processor.MinChunkLength,
	})

	ingestService := ingest.NewWithConfig(sc, sc, proc, vectorStore, ingest.ServiceConfig{
		AllowedPrefixes: cfg.Ingestion.AllowedPrefixes,
		Workers:         cfg.Ingestion.Workers,
		OnProgress:      opts.onProgress,
	})

	return &app{
		config:  cfg,
		store:   vectorStore,
		ingest:  ingestService,
		answers: answer.New(vectorStore.AsRetriever(cfg.Store.DefaultK), chatEngine),
	}, nil
}

func newSnapshotter(ctx context.Context, cfg *cfgPkg.Config) (store.Snapshotter, error) {
	switch cfg.Store.Backend {
	case cfgPkg.BackendPostgres:
		snap, err := store.NewPostgresSnapshotter(ctx, cfg.Store.DatabaseURL, cfg.Store.TableName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres snapshot: %w", err)
		}
		slog.Info("using postgres snapshot", "table", cfg.Store.TableName)
		return snap, nil
	default:
		slog.Info("using file snapshot", "path", cfg.Store.SnapshotPath)
		return store.NewFileSnapshotter(cfg.Store.SnapshotPath), nil
	}
}

func (a *app) Close() {
	a.store.Close()
}

package processor

import (
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/instructai/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor splits fetched pages into documents ready for embedding.
type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.TextSplitter
}

func NewWithConfig(config ProcessorConfig) *Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 20
	}

	return &Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}
}

// Process turns every page into one or more documents. Each document carries
// the page metadata plus its chunk index; "source" is always the page URL.
func (p *Processor) Process(pages []models.Page) []models.Document {
	var docs []models.Document

	for _, page := range pages {
		for i, chunk := range p.split(page) {
			metadata := make(map[string]string, len(page.Metadata)+2)
			for k, v := range page.Metadata {
				if v != "" {
					metadata[k] = v
				}
			}
			metadata[models.MetadataSource] = page.URL
			metadata[models.MetadataChunkIndex] = strconv.Itoa(i)

			docs = append(docs, models.Document{
				Text:     chunk,
				Metadata: metadata,
			})
		}
	}

	return docs
}

func (p *Processor) split(page models.Page) []string {
	text := cleanText(page.Content)
	if text == "" {
		return nil
	}

	parts, err := p.splitter.SplitText(text)
	if err != nil {
		slog.Warn("text splitter failed, indexing page as one chunk", "url", page.URL, "error", err)
		return []string{text}
	}

	var chunks []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) < p.config.MinChunkLength {
			continue
		}
		chunks = append(chunks, part)
	}

	// Short pages are still worth one chunk.
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

func cleanText(text string) string {
	text = sanitizeUTF8(text)

	// Collapse whitespace runs but keep paragraph breaks for the splitter.
	paragraphs := strings.Split(text, "\n\n")
	kept := paragraphs[:0]
	for _, para := range paragraphs {
		if para = strings.Join(strings.Fields(para), " "); para != "" {
			kept = append(kept, para)
		}
	}

	return strings.Join(kept, "\n\n")
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

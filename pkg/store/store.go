package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/instructai/internal/models"
)

// DimensionProbe is embedded once to fix the dimension of a fresh index.
const DimensionProbe = "hello world"

type Config struct {
	DefaultK int
}

// VectorStore owns the index and its snapshot. Queries run concurrently with
// each other and with an indexing batch; a batch becomes visible to queries
// all at once. Writers are serialized.
type VectorStore struct {
	config   Config
	embedder embeddings.Embedder
	snap     Snapshotter

	writeMu sync.Mutex // serializes IndexDocuments, Add and Persist

	mu  sync.RWMutex // guards idx
	idx *flatIndex
}

// Open loads the snapshot if one exists, or starts an empty index whose
// dimension is fixed by the first insertion.
func Open(ctx context.Context, config Config, embedder embeddings.Embedder, snap Snapshotter) (*VectorStore, error) {
	if config.DefaultK <= 0 {
		config.DefaultK = 5
	}

	vs := &VectorStore{
		config:   config,
		embedder: embedder,
		snap:     snap,
		idx:      newFlatIndex(0),
	}

	loaded, err := snap.Load(ctx)
	if err != nil {
		return nil, &StoreInitError{Location: snap.Location(), Err: err}
	}
	if loaded == nil {
		slog.Info("no snapshot found, starting empty index", "location", snap.Location())
		return vs, nil
	}

	if err := loaded.validate(); err != nil {
		return nil, &StoreInitError{Location: snap.Location(), Err: err}
	}

	idx := newFlatIndex(loaded.Dimension)
	idx.add(loaded.Chunks)
	vs.idx = idx

	slog.Info("snapshot loaded", "location", snap.Location(), "chunks", idx.len(), "dimension", idx.dim)
	return vs, nil
}

// Len returns the number of indexed chunks.
func (vs *VectorStore) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.idx.len()
}

// Dimension returns the index dimension, or 0 before the first insertion.
func (vs *VectorStore) Dimension() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.idx.dim
}

// Get returns a copy of the chunk stored under id.
func (vs *VectorStore) Get(id string) (models.Chunk, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.idx.get(id)
}

// IndexDocuments embeds and inserts docs, then persists the snapshot.
// Documents that fail to embed, lack a source, or embed to the wrong
// dimension are logged and counted as failed; they never abort the batch.
// A *PersistError means the batch is live in memory but not yet durable.
func (vs *VectorStore) IndexDocuments(ctx context.Context, docs []models.Document) (models.IndexReport, error) {
	vs.writeMu.Lock()
	defer vs.writeMu.Unlock()

	var report models.IndexReport
	if len(docs) == 0 {
		return report, nil
	}

	dim, err := vs.ensureDimension(ctx)
	if err != nil {
		return report, err
	}

	batch := make([]models.Chunk, 0, len(docs))
	for i, doc := range docs {
		source := doc.Metadata[models.MetadataSource]
		if source == "" {
			slog.Warn("skipping document without source", "position", i)
			report.Failed++
			continue
		}

		vector, err := vs.embedder.EmbedQuery(ctx, doc.Text)
		if err != nil {
			slog.Warn("skipping document, embedding failed", "source", source, "position", i, "error", err)
			report.Failed++
			continue
		}
		if len(vector) != dim {
			slog.Error("skipping document, embedding dimension changed", "source", source,
				"error", &DimensionError{Want: dim, Got: len(vector)})
			report.Failed++
			continue
		}

		metadata := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = v
		}

		batch = append(batch, models.Chunk{
			ID:       uuid.NewString(),
			Text:     doc.Text,
			Metadata: metadata,
			Vector:   vector,
		})
	}

	if len(batch) == 0 {
		return report, nil
	}

	if err := vs.commit(batch); err != nil {
		return report, err
	}
	report.Indexed = len(batch)
	for _, c := range batch {
		report.IDs = append(report.IDs, c.ID)
	}

	slog.Info("indexed documents", "indexed", report.Indexed, "failed", report.Failed, "total", vs.Len())

	return report, vs.persistLocked(ctx)
}

// Add inserts pre-embedded chunks. The batch is all-or-nothing: any chunk with
// an empty or duplicate id, no source, or a vector of the wrong dimension
// rejects the whole call.
func (vs *VectorStore) Add(ctx context.Context, chunks []models.Chunk) error {
	vs.writeMu.Lock()
	defer vs.writeMu.Unlock()

	if len(chunks) == 0 {
		return nil
	}

	batch := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		batch[i] = cloneChunk(c)
	}

	if err := vs.commit(batch); err != nil {
		return err
	}
	return vs.persistLocked(ctx)
}

// Persist writes the current index to the snapshot. Use it to retry after a
// *PersistError.
func (vs *VectorStore) Persist(ctx context.Context) error {
	vs.writeMu.Lock()
	defer vs.writeMu.Unlock()
	return vs.persistLocked(ctx)
}

// Query embeds text and returns the k nearest chunks, nearest first.
// k <= 0 uses the configured default.
func (vs *VectorStore) Query(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	if vs.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	vector, err := vs.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vs.QueryVector(vector, k)
}

// QueryVector returns the k chunks nearest to vector, nearest first.
func (vs *VectorStore) QueryVector(vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = vs.config.DefaultK
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()

	if vs.idx.len() == 0 {
		return nil, ErrEmptyIndex
	}
	if len(vector) != vs.idx.dim {
		return nil, &DimensionError{Want: vs.idx.dim, Got: len(vector)}
	}
	return vs.idx.search(vector, k), nil
}

// Close releases the snapshot backend when it holds resources.
func (vs *VectorStore) Close() {
	if c, ok := vs.snap.(interface{ Close() }); ok {
		c.Close()
	}
}

// ensureDimension returns the index dimension, probing the embedder the
// first time. Callers hold writeMu.
func (vs *VectorStore) ensureDimension(ctx context.Context) (int, error) {
	vs.mu.RLock()
	dim := vs.idx.dim
	vs.mu.RUnlock()
	if dim > 0 {
		return dim, nil
	}

	probe, err := vs.embedder.EmbedQuery(ctx, DimensionProbe)
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(probe) == 0 {
		return 0, &StoreInitError{Location: vs.snap.Location(), Err: fmt.Errorf("embedder returned an empty probe vector")}
	}

	vs.mu.Lock()
	vs.idx.dim = len(probe)
	vs.mu.Unlock()

	slog.Info("index dimension fixed", "dimension", len(probe))
	return len(probe), nil
}

// commit validates and publishes a batch. Callers hold writeMu.
func (vs *VectorStore) commit(batch []models.Chunk) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if err := vs.idx.validate(batch); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	vs.idx.add(batch)
	return nil
}

// persistLocked saves the committed index. Callers hold writeMu, so the
// chunk slice cannot grow while it is being encoded.
func (vs *VectorStore) persistLocked(ctx context.Context) error {
	vs.mu.RLock()
	snap := vs.idx.snapshot()
	vs.mu.RUnlock()

	if err := vs.snap.Save(ctx, snap); err != nil {
		slog.Error("snapshot write failed; in-memory index is ahead of disk",
			"location", vs.snap.Location(), "chunks", len(snap.Chunks), "error", err)
		return &PersistError{Location: vs.snap.Location(), Err: err}
	}

	slog.Debug("snapshot saved", "location", vs.snap.Location(), "chunks", len(snap.Chunks))
	return nil
}

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/instructai/internal/models"
	"github.com/xhad/instructai/internal/testutil"
)

func openFileStore(t *testing.T, path string, emb *testutil.FakeEmbedder) *VectorStore {
	t.Helper()
	vs, err := Open(context.Background(), Config{DefaultK: 5}, emb, NewFileSnapshotter(path))
	require.NoError(t, err)
	return vs
}

func doc(text, source string) models.Document {
	return models.Document{Text: text, Metadata: map[string]string{models.MetadataSource: source}}
}

func TestOpenWithoutSnapshot(t *testing.T) {
	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), testutil.NewFakeEmbedder(4))

	assert.Equal(t, 0, vs.Len())
	assert.Equal(t, 0, vs.Dimension())

	_, err := vs.Query(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestIndexDocumentsPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "index.snapshot")
	emb := testutil.NewFakeEmbedder(8)

	vs := openFileStore(t, path, emb)
	report, err := vs.IndexDocuments(ctx, []models.Document{
		doc("alpha text", "https://example.com/a"),
		doc("beta text", "https://example.com/b"),
		doc("gamma text", "https://example.com/c"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.IDs, 3)
	assert.Equal(t, 8, vs.Dimension())
	assert.FileExists(t, path)

	before, err := vs.Query(ctx, "beta text", 3)
	require.NoError(t, err)

	reloaded := openFileStore(t, path, emb)
	assert.Equal(t, 3, reloaded.Len())
	assert.Equal(t, 8, reloaded.Dimension())

	after, err := reloaded.Query(ctx, "beta text", 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	for _, id := range report.IDs {
		orig, ok := vs.Get(id)
		require.True(t, ok)
		got, ok := reloaded.Get(id)
		require.True(t, ok)
		assert.Equal(t, orig, got)
	}
}

func TestQueryExactMatch(t *testing.T) {
	ctx := context.Background()
	emb := testutil.NewFakeEmbedder(3)
	emb.Vectors["one"] = []float32{1, 0, 0}
	emb.Vectors["two"] = []float32{0, 1, 0}
	emb.Vectors["three"] = []float32{0, 0, 1}
	emb.Vectors["probe"] = []float32{0, 1, 0}

	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), emb)
	_, err := vs.IndexDocuments(ctx, []models.Document{
		doc("one", "https://example.com/1"),
		doc("two", "https://example.com/2"),
		doc("three", "https://example.com/3"),
	})
	require.NoError(t, err)

	results, err := vs.Query(ctx, "probe", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].Chunk.Text)
	assert.Equal(t, "https://example.com/2", results[0].Chunk.Source())
	assert.Zero(t, results[0].Distance)
}

func TestQueryOrderingAndTies(t *testing.T) {
	ctx := context.Background()
	emb := testutil.NewFakeEmbedder(2)
	emb.Vectors["far"] = []float32{3, 0}
	emb.Vectors["near"] = []float32{1, 0}
	emb.Vectors["tie-a"] = []float32{0, 2}
	emb.Vectors["tie-b"] = []float32{0, -2}
	emb.Vectors["origin"] = []float32{0, 0}

	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), emb)
	_, err := vs.IndexDocuments(ctx, []models.Document{
		doc("far", "s1"), doc("tie-a", "s2"), doc("near", "s3"), doc("tie-b", "s4"),
	})
	require.NoError(t, err)

	results, err := vs.Query(ctx, "origin", 10)
	require.NoError(t, err)
	require.Len(t, results, 4)

	var texts []string
	for i, r := range results {
		texts = append(texts, r.Chunk.Text)
		if i > 0 {
			assert.LessOrEqual(t, results[i-1].Distance, r.Distance)
		}
	}
	assert.Equal(t, []string{"near", "tie-a", "tie-b", "far"}, texts)
	assert.InDelta(t, 1.0, results[0].Distance, 1e-6)
	assert.InDelta(t, 3.0, results[3].Distance, 1e-6)
}

func TestQueryReturnsAtMostIndexSize(t *testing.T) {
	ctx := context.Background()
	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), testutil.NewFakeEmbedder(4))

	_, err := vs.IndexDocuments(ctx, []models.Document{doc("only", "https://example.com")})
	require.NoError(t, err)

	results, err := vs.Query(ctx, "something else", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = vs.Query(ctx, "something else", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestIndexDocumentsIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	emb := testutil.NewFakeEmbedder(4)
	emb.Fail["broken"] = true
	emb.Vectors["short"] = []float32{1, 2}

	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), emb)
	report, err := vs.IndexDocuments(ctx, []models.Document{
		doc("fine", "https://example.com/1"),
		doc("broken", "https://example.com/2"),
		doc("short", "https://example.com/3"),
		{Text: "no source"},
		doc("also fine", "https://example.com/4"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 2, vs.Len())
	assert.Equal(t, 4, vs.Dimension())
}

func TestIndexDocumentsAllFailedSkipsPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snapshot")
	emb := testutil.NewFakeEmbedder(4)
	emb.Fail["broken"] = true

	vs := openFileStore(t, path, emb)
	report, err := vs.IndexDocuments(ctx, []models.Document{doc("broken", "https://example.com")})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	assert.NoFileExists(t, path)
}

func TestAddValidatesBatch(t *testing.T) {
	ctx := context.Background()
	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), testutil.NewFakeEmbedder(3))

	chunk := func(id string, vec ...float32) models.Chunk {
		return models.Chunk{ID: id, Text: id, Metadata: map[string]string{models.MetadataSource: "s"}, Vector: vec}
	}

	require.NoError(t, vs.Add(ctx, []models.Chunk{chunk("a", 1, 2, 3)}))
	assert.Equal(t, 3, vs.Dimension())

	tests := []struct {
		name  string
		batch []models.Chunk
		is    error
	}{
		{name: "wrong dimension", batch: []models.Chunk{chunk("b", 1, 2)}, is: ErrDimensionMismatch},
		{name: "duplicate id", batch: []models.Chunk{chunk("a", 1, 1, 1)}},
		{name: "duplicate within batch", batch: []models.Chunk{chunk("c", 1, 1, 1), chunk("c", 2, 2, 2)}},
		{name: "empty id", batch: []models.Chunk{chunk("", 1, 1, 1)}},
		{name: "missing source", batch: []models.Chunk{{ID: "d", Vector: []float32{1, 1, 1}}}},
		{name: "partial batch rejected", batch: []models.Chunk{chunk("e", 1, 1, 1), chunk("f", 1)}, is: ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vs.Add(ctx, tt.batch)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, 1, vs.Len())
		})
	}
}

func TestQueryVectorDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), testutil.NewFakeEmbedder(4))
	_, err := vs.IndexDocuments(ctx, []models.Document{doc("text", "s")})
	require.NoError(t, err)

	_, err = vs.QueryVector([]float32{1, 2}, 1)
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Want)
	assert.Equal(t, 2, dimErr.Got)
}

func TestOpenCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a snapshot"), 0o644))

	_, err := Open(context.Background(), Config{}, testutil.NewFakeEmbedder(4), NewFileSnapshotter(path))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreInit)

	var initErr *StoreInitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, path, initErr.Location)
}

func TestOpenInconsistentSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snapshot")
	snap := &Snapshot{
		Version:   snapshotVersion,
		Dimension: 3,
		Chunks: []models.Chunk{
			{ID: "a", Text: "a", Metadata: map[string]string{models.MetadataSource: "s"}, Vector: []float32{1, 2, 3}},
			{ID: "b", Text: "b", Metadata: map[string]string{models.MetadataSource: "s"}, Vector: []float32{1, 2}},
		},
	}
	require.NoError(t, NewFileSnapshotter(path).Save(ctx, snap))

	_, err := Open(ctx, Config{}, testutil.NewFakeEmbedder(3), NewFileSnapshotter(path))
	assert.ErrorIs(t, err, ErrStoreInit)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOpenSnapshotDimensionDiffersFromEmbedder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snapshot")

	vs := openFileStore(t, path, testutil.NewFakeEmbedder(4))
	_, err := vs.IndexDocuments(ctx, []models.Document{doc("text", "s")})
	require.NoError(t, err)

	reopened := openFileStore(t, path, testutil.NewFakeEmbedder(6))
	_, err = reopened.Query(ctx, "text", 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	report, err := reopened.IndexDocuments(ctx, []models.Document{doc("more", "s")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, reopened.Len())
}

func TestPersistFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snapshot")
	vs := openFileStore(t, path, testutil.NewFakeEmbedder(4))

	// A directory at the snapshot path makes the final rename fail.
	require.NoError(t, os.Mkdir(path, 0o755))

	report, err := vs.IndexDocuments(ctx, []models.Document{doc("text", "s")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, 1, report.Indexed)

	// The batch stays queryable even though it is not durable.
	results, err := vs.Query(ctx, "text", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	require.NoError(t, os.Remove(path))
	require.NoError(t, vs.Persist(ctx))

	reloaded := openFileStore(t, path, testutil.NewFakeEmbedder(4))
	assert.Equal(t, 1, reloaded.Len())
}

func TestConcurrentQueriesDuringIndexing(t *testing.T) {
	ctx := context.Background()
	emb := testutil.NewFakeEmbedder(8)
	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), emb)

	_, err := vs.IndexDocuments(ctx, []models.Document{doc("seed", "s")})
	require.NoError(t, err)

	const batches = 10
	const perBatch = 5

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for b := 0; b < batches; b++ {
			docs := make([]models.Document, perBatch)
			for i := range docs {
				docs[i] = doc(string(rune('a'+b))+string(rune('a'+i)), "s")
			}
			if _, err := vs.IndexDocuments(ctx, docs); err != nil {
				errs <- err
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				n := vs.Len()
				// Every observed size is the seed plus whole batches.
				if (n-1)%perBatch != 0 {
					errs <- errors.New("observed partial batch")
					return
				}
				if _, err := vs.Query(ctx, "seed", 3); err != nil {
					errs <- err
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 1+batches*perBatch, vs.Len())
}

func TestRetriever(t *testing.T) {
	ctx := context.Background()
	emb := testutil.NewFakeEmbedder(3)
	emb.Vectors["one"] = []float32{1, 0, 0}
	emb.Vectors["two"] = []float32{0, 1, 0}

	vs := openFileStore(t, filepath.Join(t.TempDir(), "index.snapshot"), emb)
	_, err := vs.IndexDocuments(ctx, []models.Document{doc("one", "https://example.com/1"), doc("two", "https://example.com/2")})
	require.NoError(t, err)

	r := vs.AsRetriever(0)
	assert.Equal(t, 5, r.K())

	docs, err := vs.AsRetriever(1).GetRelevantDocuments(ctx, "one")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "one", docs[0].PageContent)
	assert.Equal(t, "https://example.com/1", docs[0].Metadata[models.MetadataSource])
	assert.NotEmpty(t, docs[0].Metadata["id"])
	assert.Zero(t, docs[0].Score)
}

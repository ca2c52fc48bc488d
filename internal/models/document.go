package models

// Page is the normalized content of one fetched URL.
type Page struct {
	URL      string
	Title    string
	Content  string
	Metadata map[string]string
}

// Document is a unit of text handed to the vector store for indexing.
// Metadata must carry a non-empty "source".
type Document struct {
	Text     string
	Metadata map[string]string
}

// Chunk is one indexed unit: text, metadata and the vector it was stored under.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
	Vector   []float32
}

// Source returns the originating URL of the chunk.
func (c Chunk) Source() string {
	return c.Metadata[MetadataSource]
}

// SearchResult is a chunk annotated with its L2 distance to a query vector.
type SearchResult struct {
	Chunk    Chunk
	Distance float32
}

// IndexReport summarizes one IndexDocuments batch.
type IndexReport struct {
	Indexed int
	Failed  int
	IDs     []string
}

// UploadSummary is returned by an ingestion call.
type UploadSummary struct {
	Message   string `json:"message"`
	URLs      int    `json:"urls"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Chunks    int    `json:"chunks"`
}

const (
	MetadataSource     = "source"
	MetadataTitle      = "title"
	MetadataChunkIndex = "chunk_index"
)

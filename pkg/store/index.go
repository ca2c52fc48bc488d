package store

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/xhad/instructai/internal/models"
)

// flatIndex is an exhaustive L2 index. Chunks are append-only and never
// mutated once added, so a slice of chunks[:n] stays valid after later adds.
type flatIndex struct {
	dim    int
	chunks []models.Chunk
	byID   map[string]int
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim, byID: make(map[string]int)}
}

func (x *flatIndex) len() int { return len(x.chunks) }

// validate checks a batch against the index without modifying it.
func (x *flatIndex) validate(batch []models.Chunk) error {
	dim := x.dim
	seen := make(map[string]bool, len(batch))

	for i, c := range batch {
		if c.ID == "" {
			return fmt.Errorf("chunk %d: empty id", i)
		}
		if _, dup := x.byID[c.ID]; dup || seen[c.ID] {
			return fmt.Errorf("chunk %d: duplicate id %s", i, c.ID)
		}
		seen[c.ID] = true

		if c.Source() == "" {
			return fmt.Errorf("chunk %s: missing %q metadata", c.ID, models.MetadataSource)
		}
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s: %w", c.ID, errors.New("empty vector"))
		}
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) != dim {
			return fmt.Errorf("chunk %s: %w", c.ID, &DimensionError{Want: dim, Got: len(c.Vector)})
		}
	}
	return nil
}

// add appends a batch that has already passed validate.
func (x *flatIndex) add(batch []models.Chunk) {
	if x.dim == 0 && len(batch) > 0 {
		x.dim = len(batch[0].Vector)
	}
	for _, c := range batch {
		x.byID[c.ID] = len(x.chunks)
		x.chunks = append(x.chunks, c)
	}
}

func (x *flatIndex) get(id string) (models.Chunk, bool) {
	pos, ok := x.byID[id]
	if !ok {
		return models.Chunk{}, false
	}
	return cloneChunk(x.chunks[pos]), true
}

// search returns the k nearest chunks by Euclidean distance, nearest first.
// Ties keep insertion order.
func (x *flatIndex) search(query []float32, k int) []models.SearchResult {
	type candidate struct {
		pos  int
		dist float64
	}

	candidates := make([]candidate, len(x.chunks))
	for i, c := range x.chunks {
		candidates[i] = candidate{pos: i, dist: l2(query, c.Vector)}
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(a.dist, b.dist)
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]models.SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = models.SearchResult{
			Chunk:    cloneChunk(x.chunks[candidates[i].pos]),
			Distance: float32(candidates[i].dist),
		}
	}
	return results
}

func (x *flatIndex) snapshot() *Snapshot {
	n := len(x.chunks)
	return &Snapshot{
		Version:   snapshotVersion,
		Dimension: x.dim,
		Chunks:    x.chunks[:n:n],
	}
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cloneChunk(c models.Chunk) models.Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	c.Vector = slices.Clone(c.Vector)
	return c
}

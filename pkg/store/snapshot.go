package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/instructai/internal/models"
)

const snapshotVersion = 1

// Snapshot is the persisted form of the index: dimension plus every chunk in
// insertion order.
type Snapshot struct {
	Version   int
	Dimension int
	Chunks    []models.Chunk
}

// Snapshotter persists whole snapshots. Load returns (nil, nil) when no
// snapshot exists yet. Save replaces any previous snapshot in full.
type Snapshotter interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Location() string
}

// validate checks the invariants a loaded snapshot must satisfy before it
// becomes the live index.
func (s *Snapshot) validate() error {
	if s.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Dimension <= 0 && len(s.Chunks) > 0 {
		return errors.New("snapshot has chunks but no dimension")
	}
	return newFlatIndex(s.Dimension).validate(s.Chunks)
}

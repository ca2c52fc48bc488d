package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreInit matches snapshot corruption and dimension mismatches.
	ErrStoreInit = errors.New("vector store initialization failed")
	// ErrDimensionMismatch matches every *DimensionError. It is also an ErrStoreInit.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrPersist matches every *PersistError.
	ErrPersist = errors.New("snapshot persistence failed")
	// ErrEmptyIndex is returned by queries against an index with no chunks.
	ErrEmptyIndex = errors.New("index is empty: no documents have been indexed")
)

// StoreInitError reports an unreadable or inconsistent snapshot.
type StoreInitError struct {
	Location string
	Err      error
}

func (e *StoreInitError) Error() string {
	return fmt.Sprintf("load snapshot %s: %v", e.Location, e.Err)
}

func (e *StoreInitError) Unwrap() error { return e.Err }

func (e *StoreInitError) Is(target error) bool { return target == ErrStoreInit }

// DimensionError reports a vector whose length differs from the index dimension.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector has dimension %d, index expects %d", e.Got, e.Want)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch || target == ErrStoreInit
}

// PersistError reports a failed snapshot write. The in-memory index already
// holds the batch; call Persist to retry.
type PersistError struct {
	Location string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist snapshot %s: %v", e.Location, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersist }

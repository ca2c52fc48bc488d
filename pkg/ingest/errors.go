package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestion matches every *IngestionError.
	ErrIngestion = errors.New("ingestion failed")
	// ErrInvalidURL is wrapped when the submitted URL is not absolute http(s).
	ErrInvalidURL = errors.New("invalid url")
)

// IngestionError is a root-level failure: the submitted URL or sitemap
// itself could not be fetched, parsed or indexed.
type IngestionError struct {
	URL string
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.URL, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }

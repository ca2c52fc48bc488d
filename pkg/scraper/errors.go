package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every *FetchError.
	ErrFetch = errors.New("fetch failed")
	// ErrSitemapFormat matches every *SitemapFormatError.
	ErrSitemapFormat = errors.New("invalid sitemap")
	// ErrNotHTML is wrapped by a FetchError when a page is not an HTML document.
	ErrNotHTML = errors.New("content is not HTML")
	// ErrNoContent is wrapped by a FetchError when a page has no extractable text.
	ErrNoContent = errors.New("page has no text content")
)

// FetchError reports a network or content failure for one URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: received status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// SitemapFormatError reports a sitemap response that is not parseable XML.
type SitemapFormatError struct {
	URL    string
	Reason string
	Err    error
}

func (e *SitemapFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sitemap %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("sitemap %s: %s", e.URL, e.Reason)
}

func (e *SitemapFormatError) Unwrap() error { return e.Err }

func (e *SitemapFormatError) Is(target error) bool { return target == ErrSitemapFormat }

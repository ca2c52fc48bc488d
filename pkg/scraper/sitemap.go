package scraper

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// SitemapNamespace is the XML namespace of sitemaps.org documents.
const SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// sitemaps are capped at 50MB uncompressed by the protocol
const maxSitemapBytes = 50 << 20

// SitemapURLs fetches a sitemap and returns every <loc> value in the sitemap
// namespace, in document order.
func (s *Scraper) SitemapURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	resp, err := s.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "xml") {
		return nil, &SitemapFormatError{
			URL:    sitemapURL,
			Reason: "content is not in XML format: " + contentType,
		}
	}

	urls, err := ParseSitemap(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.URL = sitemapURL
			return nil, fe
		}
		return nil, &SitemapFormatError{URL: sitemapURL, Reason: "error parsing sitemap XML", Err: err}
	}
	return urls, nil
}

// ParseSitemap extracts the <loc> values of a sitemap document.
func ParseSitemap(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		urls  []string
		inLoc bool
		loc   strings.Builder
		seen  bool
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, err
			}
			return nil, &FetchError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			seen = true
			if t.Name.Space == SitemapNamespace && t.Name.Local == "loc" {
				inLoc = true
				loc.Reset()
			}
		case xml.CharData:
			if inLoc {
				loc.Write(t)
			}
		case xml.EndElement:
			if inLoc && t.Name.Space == SitemapNamespace && t.Name.Local == "loc" {
				inLoc = false
				if u := strings.TrimSpace(loc.String()); u != "" {
					urls = append(urls, u)
				}
			}
		}
	}

	if !seen {
		return nil, errors.New("document has no root element")
	}
	return urls, nil
}

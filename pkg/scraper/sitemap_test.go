package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://handbook.gitlab.com/handbook/values/</loc></url>
  <url><loc> https://about.gitlab.com/pricing/ </loc></url>
  <url><loc></loc></url>
</urlset>`

func TestParseSitemap(t *testing.T) {
	urls, err := ParseSitemap(strings.NewReader(testSitemap))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://handbook.gitlab.com/handbook/values/",
		"https://about.gitlab.com/pricing/",
	}, urls)
}

func TestParseSitemapIgnoresForeignNamespace(t *testing.T) {
	doc := `<urlset xmlns="http://example.com/other"><url><loc>https://x/a</loc></url></urlset>`
	urls, err := ParseSitemap(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestParseSitemapForeignLocDoesNotCloseEntry(t *testing.T) {
	doc := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:x="http://example.com/other">` +
		`<url><loc>https://x/<x:loc>ignored</x:loc>a</loc></url></urlset>`
	urls, err := ParseSitemap(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/ignoreda"}, urls)
}

func TestParseSitemapMalformed(t *testing.T) {
	_, err := ParseSitemap(strings.NewReader(`<urlset><url><loc>https://x/a</url>`))
	assert.Error(t, err)

	_, err = ParseSitemap(strings.NewReader(``))
	assert.Error(t, err)
}

func TestSitemapURLs(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        []string
		wantErr     error
	}{
		{
			name:        "valid sitemap",
			contentType: "application/xml",
			body:        testSitemap,
			status:      http.StatusOK,
			want:        []string{"https://handbook.gitlab.com/handbook/values/", "https://about.gitlab.com/pricing/"},
		},
		{
			name:        "text xml",
			contentType: "text/xml; charset=utf-8",
			body:        testSitemap,
			status:      http.StatusOK,
			want:        []string{"https://handbook.gitlab.com/handbook/values/", "https://about.gitlab.com/pricing/"},
		},
		{
			name:        "html content type",
			contentType: "text/html",
			body:        "<html></html>",
			status:      http.StatusOK,
			wantErr:     ErrSitemapFormat,
		},
		{
			name:        "broken xml",
			contentType: "application/xml",
			body:        "<urlset><url>",
			status:      http.StatusOK,
			wantErr:     ErrSitemapFormat,
		},
		{
			name:        "missing sitemap",
			contentType: "application/xml",
			status:      http.StatusNotFound,
			wantErr:     ErrFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := NewWithConfig(ScraperConfig{RateLimit: 100})
			urls, err := s.SitemapURLs(context.Background(), server.URL+"/sitemap.xml")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, urls)
		})
	}
}

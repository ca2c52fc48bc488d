package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/instructai/internal/models"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	MaxDepth          int     // 0 fetches only the given page
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	UserAgent         string
	OnProgress        func(url string)
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.UserAgent == "" {
		config.UserAgent = "instructai-indexer/1.0"
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Fetch retrieves rawURL and, when MaxDepth > 0, same-host pages linked from it.
// A failure of rawURL itself is returned as a *FetchError; failures of linked
// pages are logged and skipped.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) ([]models.Page, error) {
	root, err := url.Parse(rawURL)
	if err != nil || root.Host == "" {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("invalid URL")}
	}

	c := crawl{
		scraper: s,
		host:    root.Host,
		visited: make(map[string]bool),
	}

	page, links, err := s.fetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	c.visited[rawURL] = true
	c.pages = append(c.pages, *page)
	s.progress(rawURL)

	c.follow(ctx, rawURL, links, 1)
	return c.pages, nil
}

type crawl struct {
	scraper *Scraper
	host    string
	visited map[string]bool
	pages   []models.Page
}

func (c *crawl) follow(ctx context.Context, base string, links []string, depth int) {
	if depth > c.scraper.config.MaxDepth {
		return
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return
	}

	for _, href := range links {
		if ctx.Err() != nil {
			return
		}

		link, err := url.Parse(href)
		if err != nil {
			slog.Debug("skipping unparseable link", "href", href, "error", err)
			continue
		}
		if !link.IsAbs() {
			link = baseURL.ResolveReference(link)
		}
		link.Fragment = ""
		target := link.String()

		if c.visited[target] || !c.scraper.shouldProcessURL(target, c.host) {
			continue
		}
		c.visited[target] = true

		page, childLinks, err := c.scraper.fetchPage(ctx, target)
		if err != nil {
			slog.Warn("skipping linked page", "url", target, "error", err)
			continue
		}
		c.pages = append(c.pages, *page)
		c.scraper.progress(target)

		c.follow(ctx, target, childLinks, depth+1)
	}
}

func (s *Scraper) progress(u string) {
	if s.config.OnProgress != nil {
		s.config.OnProgress(u)
	}
}

func (s *Scraper) shouldProcessURL(urlStr, host string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	// Check if URL is from the same host
	if parsedURL.Host != host {
		return false
	}

	// Check extensions
	ext := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		if strings.HasSuffix(ext, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	// Check ignore patterns
	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func (s *Scraper) get(ctx context.Context, urlStr string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: urlStr, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Err: err}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &FetchError{URL: urlStr, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (s *Scraper) fetchPage(ctx context.Context, urlStr string) (*models.Page, []string, error) {
	resp, err := s.get(ctx, urlStr)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, nil, &FetchError{URL: urlStr, Err: fmt.Errorf("%w: %s", ErrNotHTML, contentType)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, &FetchError{URL: urlStr, Err: err}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		if href, ok := selection.Attr("href"); ok {
			links = append(links, href)
		}
	})

	content := extractMainContent(doc)
	if content == "" {
		return nil, nil, &FetchError{URL: urlStr, Err: ErrNoContent}
	}

	page := &models.Page{
		URL:     urlStr,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: content,
		Metadata: map[string]string{
			models.MetadataSource: urlStr,
			"content_type":        contentType,
			"last_modified":       resp.Header.Get("Last-Modified"),
		},
	}
	if page.Title != "" {
		page.Metadata[models.MetadataTitle] = page.Title
	}

	return page, links, nil
}

func cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

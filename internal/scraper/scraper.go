// Package scraper fetches a documentation seed page, follows its same-host
// out-links and extracts the readable text of each linked page.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/kalambet/supportpilot/internal/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultInterval  = time.Second
	defaultUserAgent = "supportpilot/1.0 (+docs indexer)"
	maxBodySize      = 5 << 20

	// MaxContentRunes is the length documents are truncated to.
	MaxContentRunes = 2000
	// MinContentRunes is the length a document must exceed to be kept.
	MinContentRunes = 100
)

// skipPatterns are matched case-insensitively against candidate URLs.
var skipPatterns = []string{".pdf", ".zip", ".jpg", ".png", ".gif", "/api/", "/search"}

// Document is one scraped documentation page.
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Scraper fetches documentation pages. It is safe for sequential use only;
// the request pacing is shared by every Scrape call on the same Scraper.
type Scraper struct {
	client    *http.Client
	timeout   time.Duration
	limiter   *rate.Limiter
	userAgent string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the per-request timeout. Values <= 0 keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithInterval sets the minimum delay between page fetches. Zero disables
// pacing.
func WithInterval(d time.Duration) Option {
	return func(s *Scraper) {
		s.limiter = newLimiter(d)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the HTTP client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		if c != nil {
			s.client = c
		}
	}
}

// WithMetrics records page outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// New creates a Scraper with a 10s request timeout and a 1s fetch interval.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:    &http.Client{},
		timeout:   defaultTimeout,
		limiter:   newLimiter(defaultInterval),
		userAgent: defaultUserAgent,
		logger:    slog.Default().With("component", "scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Scrape fetches seedURL, collects up to maxPages distinct same-host links
// from it and returns the pages that yielded enough text, in discovery
// order. Failures are logged and skipped; Scrape never returns an error.
func (s *Scraper) Scrape(ctx context.Context, seedURL string, maxPages int) []Document {
	if maxPages <= 0 {
		return nil
	}

	base, err := url.Parse(seedURL)
	if err != nil || base.Host == "" {
		s.logger.Warn("invalid seed url", "url", seedURL, "error", err)
		return nil
	}

	root, err := s.fetch(ctx, seedURL)
	if err != nil {
		s.logger.Warn("fetching seed failed", "url", seedURL, "error", err)
		s.metrics.ObservePage(metrics.OutcomeError)
		return nil
	}

	links := DiscoverLinks(root, base, maxPages)
	s.logger.Debug("discovered links", "seed", seedURL, "count", len(links))

	var docs []Document
	for _, link := range links {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn("scrape cancelled", "seed", seedURL, "error", err)
			break
		}
		doc, ok := s.scrapePage(ctx, link)
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL string) (Document, bool) {
	root, err := s.fetch(ctx, pageURL)
	if err != nil {
		s.logger.Warn("fetching page failed", "url", pageURL, "error", err)
		s.metrics.ObservePage(metrics.OutcomeError)
		return Document{}, false
	}

	title, content := Extract(root)
	if len([]rune(content)) <= MinContentRunes {
		s.logger.Debug("page content too short", "url", pageURL)
		s.metrics.ObservePage(metrics.OutcomeSkipped)
		return Document{}, false
	}

	s.metrics.ObservePage(metrics.OutcomeOK)
	return Document{
		URL:       pageURL,
		Title:     title,
		Content:   content,
		ScrapedAt: time.Now().UTC(),
	}, true
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return root, nil
}

// DiscoverLinks returns up to limit distinct links found in root, resolved
// against base, that stay on base's host and match no skip pattern.
// Fragments are removed before comparison.
func DiscoverLinks(root *html.Node, base *url.URL, limit int) []string {
	var links []string
	seen := make(map[string]bool)

	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				if u, ok := resolve(base, href); ok && !seen[u] {
					seen[u] = true
					links = append(links, u)
					if len(links) >= limit {
						return false
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)

	return links
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""

	if !IsDocPage(u, base) {
		return "", false
	}
	return u.String(), true
}

// IsDocPage reports whether u is on base's host and matches no skip pattern.
func IsDocPage(u, base *url.URL) bool {
	if u.Host != base.Host {
		return false
	}
	lower := strings.ToLower(u.String())
	for _, p := range skipPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

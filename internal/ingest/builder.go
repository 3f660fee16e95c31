// Package ingest builds the documentation index: it scrapes every seed and
// embeds the scraped pages, either inline or as queued background jobs.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/supportpilot/internal/scraper"
)

// DefaultMaxPages is the per-seed page limit used when a seed sets none.
const DefaultMaxPages = 5

// Seed is a documentation root to scrape.
type Seed struct {
	URL      string `json:"url" yaml:"url"`
	MaxPages int    `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// BuildStats summarises one build.
type BuildStats struct {
	Seeds      int   `json:"seeds"`
	Scraped    int   `json:"scraped"`
	Indexed    int   `json:"indexed"`
	DurationMs int64 `json:"duration_ms"`
}

// PageScraper fetches documentation pages from a seed.
type PageScraper interface {
	Scrape(ctx context.Context, seedURL string, maxPages int) []scraper.Document
}

// DocumentIndexer stores scraped documents in the search index.
type DocumentIndexer interface {
	Index(ctx context.Context, docs []scraper.Document) int
}

// Builder scrapes seeds and indexes the result.
type Builder struct {
	scraper PageScraper
	indexer DocumentIndexer
	logger  *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(s PageScraper, idx DocumentIndexer) *Builder {
	return &Builder{
		scraper: s,
		indexer: idx,
		logger:  slog.Default().With("component", "ingest"),
	}
}

// Build scrapes every seed in order and indexes all documents found.
// Seeds with MaxPages <= 0 use DefaultMaxPages.
func (b *Builder) Build(ctx context.Context, seeds []Seed) BuildStats {
	start := time.Now()
	stats := BuildStats{Seeds: len(seeds)}

	var docs []scraper.Document
	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		maxPages := seed.MaxPages
		if maxPages <= 0 {
			maxPages = DefaultMaxPages
		}
		scraped := b.scraper.Scrape(ctx, seed.URL, maxPages)
		b.logger.Info("scraped seed", "url", seed.URL, "documents", len(scraped))
		docs = append(docs, scraped...)
	}
	stats.Scraped = len(docs)

	if len(docs) > 0 {
		stats.Indexed = b.indexer.Index(ctx, docs)
	}
	stats.DurationMs = time.Since(start).Milliseconds()

	b.logger.Info("knowledge build complete",
		"seeds", stats.Seeds,
		"scraped", stats.Scraped,
		"indexed", stats.Indexed,
		"duration_ms", stats.DurationMs,
	)
	return stats
}

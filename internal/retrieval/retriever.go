// Package retrieval embeds scraped documentation into an in-memory index
// and ranks it against free-text queries by cosine similarity.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/kalambet/supportpilot/internal/metrics"
	"github.com/kalambet/supportpilot/internal/scraper"
)

// Result is one ranked document returned by Search.
type Result struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Retriever combines embedding and vector search to find relevant
// documentation. The index lives for the lifetime of the process.
type Retriever struct {
	embedder *Embedder
	store    *MemoryStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRetriever creates a Retriever with an empty index.
func NewRetriever(embedder *Embedder, m *metrics.Metrics) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    NewMemoryStore(),
		metrics:  m,
		logger:   slog.Default().With("component", "retrieval"),
	}
}

// Index embeds each document's content and stores it under its URL.
// Documents whose embedding fails are logged and skipped. It returns the
// number of documents stored.
func (r *Retriever) Index(ctx context.Context, docs []scraper.Document) int {
	if len(docs) == 0 {
		return 0
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		r.logger.Warn("some documents could not be embedded", "error", err)
	}

	stored := 0
	for i, d := range docs {
		if vecs[i] == nil {
			r.metrics.ObserveEmbedding("document", metrics.OutcomeError)
			continue
		}
		r.metrics.ObserveEmbedding("document", metrics.OutcomeOK)
		r.store.Put(Record{URL: d.URL, Title: d.Title, Content: d.Content, Embedding: vecs[i]})
		stored++
	}

	r.metrics.SetIndexSize(r.store.Len())
	r.logger.Info("indexed documents", "stored", stored, "total", r.store.Len())
	return stored
}

// Search returns up to topK documents most similar to query, highest first.
// An empty index or topK <= 0 returns nothing without embedding the query.
// A failed query embedding is logged and yields no results.
func (r *Retriever) Search(ctx context.Context, query string, topK int) []Result {
	if topK <= 0 || r.store.Len() == 0 {
		r.metrics.ObserveSearch(metrics.OutcomeNotFound, 0)
		return nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("embedding query failed", "error", err)
		r.metrics.ObserveEmbedding("query", metrics.OutcomeError)
		r.metrics.ObserveSearch(metrics.OutcomeError, 0)
		return nil
	}
	r.metrics.ObserveEmbedding("query", metrics.OutcomeOK)

	scored := r.store.Search(vec, topK)
	results := make([]Result, len(scored))
	for i, s := range scored {
		results[i] = Result{
			URL:        s.URL,
			Title:      s.Title,
			Content:    s.Content,
			Similarity: s.Similarity,
		}
	}

	outcome := metrics.OutcomeOK
	if len(results) == 0 {
		outcome = metrics.OutcomeNotFound
	}
	r.metrics.ObserveSearch(outcome, len(results))
	return results
}

// Len returns the number of indexed documents.
func (r *Retriever) Len() int {
	return r.store.Len()
}

// Reset empties the index.
func (r *Retriever) Reset() {
	r.store.Reset()
	r.metrics.SetIndexSize(0)
}

// Documents returns the indexed documents in insertion order, without
// their embeddings.
func (r *Retriever) Documents() []Record {
	return r.store.All()
}

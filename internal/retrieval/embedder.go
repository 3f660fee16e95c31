package retrieval

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/supportpilot/internal/engine"
)

// EmbedBatch sends one request at a time unless WithConcurrency raises it.
const defaultBatchConcurrency = 1

// Embedder wraps an Engine to generate text embeddings.
type Embedder struct {
	engine      engine.Engine
	model       string
	concurrency int
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithConcurrency sets how many embedding requests EmbedBatch may have in
// flight. Values below 1 are ignored.
func WithConcurrency(n int) EmbedderOption {
	return func(e *Embedder) {
		if n >= 1 {
			e.concurrency = n
		}
	}
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string, opts ...EmbedderOption) *Embedder {
	em := &Embedder{engine: e, model: model, concurrency: defaultBatchConcurrency}
	for _, opt := range opts {
		opt(em)
	}
	return em
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding text: %w", engine.ErrEmptyResponse)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts, in input order.
// Each text is embedded independently: the result has one entry per input,
// nil where embedding failed, and the joined per-text errors.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				errs[i] = fmt.Errorf("text %d: %w", i, err)
				return nil
			}
			results[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

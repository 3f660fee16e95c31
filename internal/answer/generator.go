// Package answer produces support answers grounded in the documentation
// index.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/supportpilot/internal/classify"
	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/metrics"
	"github.com/kalambet/supportpilot/internal/retrieval"
)

// Fixed replies used when no grounded answer can be produced.
const (
	NotFoundAnswer = "I couldn't find relevant information in the knowledge base to answer your question. Please contact our support team for assistance."
	ErrorAnswer    = "I encountered an error while generating an answer. Please try again or contact support."
)

// DefaultTopK is the number of documents an answer is grounded on.
const DefaultTopK = 3

const (
	defaultTimeout = 30 * time.Second
	temperature    = 0.3
	maxTokens      = 500
)

// Result is a generated answer and the URLs of the documents it was
// grounded on, most similar first.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Searcher ranks indexed documents against a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) []retrieval.Result
}

// Reranker reorders and filters search results before they ground an
// answer.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []retrieval.Result) []retrieval.Result
}

// Chatter is the chat completion dependency of the Generator.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, opts engine.ChatOptions) (string, error)
}

// Generator answers questions from retrieved documentation.
type Generator struct {
	searcher Searcher
	reranker Reranker
	client   Chatter
	model    string
	product  classify.Product
	topK     int
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTopK sets how many documents are retrieved per question.
func WithTopK(k int) Option {
	return func(g *Generator) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithTimeout bounds the completion call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithProduct sets the product named in the prompt.
func WithProduct(p classify.Product) Option {
	return func(g *Generator) { g.product = p }
}

// WithMetrics records answer outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithReranker re-scores retrieved documents before answering. Documents
// the reranker drops are neither shown to the model nor cited.
func WithReranker(r Reranker) Option {
	return func(g *Generator) { g.reranker = r }
}

// New creates a Generator.
func New(searcher Searcher, client Chatter, model string, opts ...Option) *Generator {
	g := &Generator{
		searcher: searcher,
		client:   client,
		model:    model,
		product:  classify.DefaultProduct,
		topK:     DefaultTopK,
		timeout:  defaultTimeout,
		logger:   slog.Default().With("component", "answer"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Answer retrieves documents for query and asks the model to answer from
// them. It never fails: with no relevant documents it returns
// NotFoundAnswer, and on a completion failure ErrorAnswer, both with no
// sources.
func (g *Generator) Answer(ctx context.Context, query, topic string) Result {
	results := g.searcher.Search(ctx, query, g.topK)
	if g.reranker != nil && len(results) > 0 {
		results = g.reranker.Rerank(ctx, query, results)
	}
	if len(results) == 0 {
		g.metrics.ObserveAnswer(metrics.OutcomeNotFound)
		return Result{Answer: NotFoundAnswer, Sources: []string{}}
	}

	text, err := g.complete(ctx, query, topic, results)
	if err != nil {
		g.logger.Warn("answer generation failed", "error", err)
		g.metrics.ObserveAnswer(metrics.OutcomeError)
		return Result{Answer: ErrorAnswer, Sources: []string{}}
	}

	sources := make([]string, len(results))
	for i, r := range results {
		sources[i] = r.URL
	}
	g.metrics.ObserveAnswer(metrics.OutcomeOK)
	return Result{Answer: text, Sources: sources}
}

func (g *Generator) complete(ctx context.Context, query, topic string, results []retrieval.Result) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Chat(ctx, g.model, Compose(g.product, query, topic, results), engine.ChatOptions{
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", engine.ErrEmptyResponse
	}
	return text, nil
}

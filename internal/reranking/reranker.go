// Package reranking re-scores documentation search results with a chat
// model before they are used to ground an answer.
package reranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/retrieval"
)

const (
	defaultConcurrency = 3
	defaultThreshold   = 0.3
	defaultTimeout     = 10 * time.Second

	// Only the head of each page is scored.
	maxScoredRunes = 1500
)

// Chatter is the chat completion dependency of the LLMReranker.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, opts engine.ChatOptions) (string, error)
}

// LLMReranker asks a chat model how relevant each result is to the query,
// drops results below the threshold and sorts the rest by score.
type LLMReranker struct {
	client    Chatter
	model     string
	timeout   time.Duration
	threshold float64
	logger    *slog.Logger
}

// Option configures an LLMReranker.
type Option func(*LLMReranker)

// WithTimeout bounds a whole Rerank call.
func WithTimeout(d time.Duration) Option {
	return func(r *LLMReranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithThreshold sets the minimum relevance score a result needs to be kept.
func WithThreshold(t float64) Option {
	return func(r *LLMReranker) { r.threshold = t }
}

// New creates an LLMReranker scoring with model.
func New(client Chatter, model string, opts ...Option) *LLMReranker {
	r := &LLMReranker{
		client:    client,
		model:     model,
		timeout:   defaultTimeout,
		threshold: defaultThreshold,
		logger:    slog.Default().With("component", "reranker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scored struct {
	result retrieval.Result
	score  float64
}

// Rerank scores every result against query. A result whose score cannot be
// obtained keeps its similarity as its score. If the timeout fires before
// scoring completes, results are returned unchanged.
func (r *LLMReranker) Rerank(ctx context.Context, query string, results []retrieval.Result) []retrieval.Result {
	if len(results) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out := make([]scored, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)
	for i, res := range results {
		g.Go(func() error {
			score, err := r.score(gctx, query, res)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Debug("scoring failed, keeping similarity", "url", res.URL, "error", err)
				score = res.Similarity
			}
			out[i] = scored{result: res, score: score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("reranking timed out, keeping search order", "error", err)
		return results
	}

	kept := make([]scored, 0, len(out))
	for _, s := range out {
		if s.score >= r.threshold {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})

	reranked := make([]retrieval.Result, len(kept))
	for i, s := range kept {
		reranked[i] = s.result
	}
	return reranked
}

func (r *LLMReranker) score(ctx context.Context, query string, res retrieval.Result) (float64, error) {
	content := []rune(res.Content)
	if len(content) > maxScoredRunes {
		content = content[:maxScoredRunes]
	}

	prompt := "Rate the relevance of the following documentation page to the support question on a scale of 0.0 to 1.0.\n" +
		"Question: " + query + "\n" +
		"Page title: " + res.Title + "\n" +
		"Page text: " + string(content) + "\n" +
		`Respond with only a JSON object: {"score": <float>}`

	resp, err := r.client.Chat(ctx, r.model, []engine.Message{
		{Role: "user", Content: prompt},
	}, engine.ChatOptions{Temperature: 0, MaxTokens: 20})
	if err != nil {
		return 0, err
	}
	return parseScore(resp)
}

// parseScore extracts the score from the first JSON object in resp. Code
// fences and surrounding prose are ignored. Scores are clamped to [0, 1].
func parseScore(resp string) (float64, error) {
	start := strings.IndexByte(resp, '{')
	end := strings.LastIndexByte(resp, '}')
	if start < 0 || end <= start {
		return 0, fmt.Errorf("no JSON object in response")
	}

	var obj struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(resp[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("decoding score: %w", err)
	}
	if obj.Score == nil {
		return 0, fmt.Errorf("response has no score")
	}
	return min(max(*obj.Score, 0), 1), nil
}

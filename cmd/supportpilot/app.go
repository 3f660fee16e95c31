package main

import (
	"fmt"

	"github.com/kalambet/supportpilot/internal/answer"
	"github.com/kalambet/supportpilot/internal/api"
	"github.com/kalambet/supportpilot/internal/classify"
	"github.com/kalambet/supportpilot/internal/config"
	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/ingest"
	"github.com/kalambet/supportpilot/internal/metrics"
	"github.com/kalambet/supportpilot/internal/pipeline"
	"github.com/kalambet/supportpilot/internal/reranking"
	"github.com/kalambet/supportpilot/internal/retrieval"
	"github.com/kalambet/supportpilot/internal/scraper"
	"github.com/kalambet/supportpilot/internal/storage"
)

// app wires the engines from a loaded config.
type app struct {
	cfg        config.Config
	metrics    *metrics.Metrics
	backend    engine.Backend
	classifier *classify.Classifier
	retriever  *retrieval.Retriever
	generator  *answer.Generator
	resolver   *pipeline.Resolver
	builder    *ingest.Builder
}

func newApp(cfg config.Config) (*app, error) {
	backend, err := engine.Detect(engine.DetectConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting inference provider: %w", err)
	}
	return newAppWith(cfg, backend), nil
}

func newAppWith(cfg config.Config, backend engine.Backend) *app {
	m := metrics.New()
	product := classify.Product{Name: cfg.Product.Name, Description: cfg.Product.Description}
	timeout := cfg.LLM.TimeoutDuration()

	classifier := classify.New(backend, cfg.LLM.ChatModel,
		classify.WithTimeout(timeout),
		classify.WithConcurrency(cfg.Classify.Concurrency),
		classify.WithProduct(product),
		classify.WithMetrics(m),
	)
	sc := scraper.New(
		scraper.WithTimeout(cfg.Scraper.TimeoutDuration()),
		scraper.WithInterval(cfg.Scraper.IntervalDuration()),
		scraper.WithUserAgent(cfg.Scraper.UserAgent),
		scraper.WithMetrics(m),
	)
	retriever := retrieval.NewRetriever(retrieval.NewEmbedder(backend, cfg.LLM.EmbedModel), m)
	answerOpts := []answer.Option{
		answer.WithTopK(cfg.Retrieval.TopK),
		answer.WithTimeout(timeout),
		answer.WithProduct(product),
		answer.WithMetrics(m),
	}
	if cfg.Retrieval.Rerank {
		answerOpts = append(answerOpts, answer.WithReranker(
			reranking.New(backend, cfg.LLM.ChatModel, reranking.WithTimeout(timeout)),
		))
	}
	generator := answer.New(retriever, backend, cfg.LLM.AnswerModel, answerOpts...)

	return &app{
		cfg:        cfg,
		metrics:    m,
		backend:    backend,
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		resolver:   pipeline.NewResolver(classifier, generator, m),
		builder:    ingest.NewBuilder(sc, retriever),
	}
}

// seeds returns the configured documentation seeds.
func (a *app) seeds() []ingest.Seed {
	urls := a.cfg.Knowledge.SeedURLs()
	seeds := make([]ingest.Seed, len(urls))
	for i, u := range urls {
		seeds[i] = ingest.Seed{URL: u, MaxPages: a.cfg.Knowledge.MaxPages}
	}
	return seeds
}

// apiDeps exposes the engines to the HTTP API and the MCP server. store
// may be nil.
func (a *app) apiDeps(store *storage.Store) api.Deps {
	return api.Deps{
		Classifier: a.classifier,
		Retriever:  a.retriever,
		Answerer:   a.generator,
		Triage:     a.resolver,
		Builder:    a.builder,
		Store:      store,
		Metrics:    a.metrics,
		Seeds:      a.seeds(),
		TopK:       a.cfg.Retrieval.TopK,
		Token:      a.cfg.Server.APIToken,
	}
}

// models lists the models the app calls.
func (a *app) models() []string {
	return []string{a.cfg.LLM.ChatModel, a.cfg.LLM.AnswerModel, a.cfg.LLM.EmbedModel}
}

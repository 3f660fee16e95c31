package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kalambet/supportpilot/internal/answer"
	"github.com/kalambet/supportpilot/internal/ingest"
	"github.com/kalambet/supportpilot/internal/metrics"
	"github.com/kalambet/supportpilot/internal/pipeline"
	"github.com/kalambet/supportpilot/internal/retrieval"
	"github.com/kalambet/supportpilot/internal/storage"
	"github.com/kalambet/supportpilot/internal/ticket"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxBulkBodySize    = 10 << 20 // 10MB
	maxTopK            = 20
)

// Classifier labels tickets.
type Classifier interface {
	Classify(ctx context.Context, title, description string) ticket.Classification
	ClassifyBulk(ctx context.Context, tickets []ticket.Ticket) []ticket.Classified
}

// Searcher ranks indexed documentation against a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) []retrieval.Result
	Len() int
	Documents() []retrieval.Record
}

// Answerer produces grounded answers.
type Answerer interface {
	Answer(ctx context.Context, query, topic string) answer.Result
}

// Triager classifies a ticket and answers or routes it.
type Triager interface {
	Resolve(ctx context.Context, t ticket.Ticket) pipeline.Resolution
}

// KnowledgeBuilder scrapes and indexes documentation seeds.
type KnowledgeBuilder interface {
	Build(ctx context.Context, seeds []ingest.Seed) ingest.BuildStats
}

// Deps holds what the HTTP API and the MCP server call into.
type Deps struct {
	Classifier Classifier
	Retriever  Searcher
	Answerer   Answerer
	Triage     Triager
	Builder    KnowledgeBuilder
	Store      *storage.Store // optional; history and job endpoints return 503 when nil
	Metrics    *metrics.Metrics
	Seeds      []ingest.Seed
	TopK       int
	Token      string
}

// NewHandler returns the HTTP API. /health and /metrics are public; every
// /v1 route requires the bearer token when one is configured.
func NewHandler(deps Deps) http.Handler {
	if deps.TopK <= 0 {
		deps.TopK = answer.DefaultTopK
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/classify", handleClassify(deps))
		r.Post("/classify/bulk", handleClassifyBulk(deps))
		r.Post("/search", handleSearch(deps))
		r.Post("/answer", handleAnswer(deps))
		r.Post("/triage", handleTriage(deps))

		r.Post("/knowledge/build", handleBuild(deps))
		r.Get("/knowledge/documents", handleListDocuments(deps))
		r.Get("/knowledge/jobs/{id}", handleGetJob(deps))

		r.Get("/tickets", handleListTickets(deps))
		r.Get("/tickets/stats", handleTicketStats(deps))
		r.Get("/tickets/{id}", handleGetTicket(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// TicketRequest is the body of /v1/classify and /v1/triage.
type TicketRequest struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	CustomerEmail string `json:"customer_email"`
}

func (req TicketRequest) ticket() ticket.Ticket {
	return ticket.Ticket{
		ID:            req.ID,
		Title:         req.Title,
		Description:   req.Description,
		CustomerEmail: req.CustomerEmail,
		CreatedAt:     time.Now().UTC(),
	}
}

func handleClassify(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TicketRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		writeJSON(w, http.StatusOK, deps.Classifier.Classify(r.Context(), req.Title, req.Description))
	}
}

// BulkRequest is the body of /v1/classify/bulk.
type BulkRequest struct {
	Tickets []ticket.Ticket `json:"tickets"`
	Save    bool            `json:"save"`
}

func handleClassifyBulk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkRequest
		if !decodeBody(w, r, maxBulkBodySize, &req) {
			return
		}
		if len(req.Tickets) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "tickets is required and must not be empty")
			return
		}
		if req.Save && deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "ticket history is not configured")
			return
		}

		tickets := make([]ticket.Ticket, len(req.Tickets))
		copy(tickets, req.Tickets)
		for i := range tickets {
			if tickets[i].ID == "" {
				tickets[i].ID = uuid.New().String()
			}
		}

		results := deps.Classifier.ClassifyBulk(r.Context(), tickets)
		if req.Save {
			if err := deps.Store.SaveClassifiedTickets(results); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to save tickets: %v", err)
				return
			}
		}

		writeJSON(w, http.StatusOK, results)
	}
}

// SearchRequest is the body of /v1/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		results := deps.Retriever.Search(r.Context(), req.Query, clampTopK(req.TopK, deps.TopK))
		if results == nil {
			results = []retrieval.Result{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// AnswerRequest is the body of /v1/answer.
type AnswerRequest struct {
	Query string `json:"query"`
	Topic string `json:"topic"`
}

func handleAnswer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		writeJSON(w, http.StatusOK, deps.Answerer.Answer(r.Context(), req.Query, req.Topic))
	}
}

func handleTriage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TicketRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		writeJSON(w, http.StatusOK, deps.Triage.Resolve(r.Context(), req.ticket()))
	}
}

// BuildRequest is the optional body of /v1/knowledge/build. Without seeds
// the configured ones are used. Async queues the build as a background job.
type BuildRequest struct {
	Seeds []ingest.Seed `json:"seeds"`
	Async bool          `json:"async"`
}

func handleBuild(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req BuildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		seeds := req.Seeds
		if len(seeds) == 0 {
			seeds = deps.Seeds
		}
		for _, s := range seeds {
			if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "seed url %q must be http or https", s.URL)
				return
			}
		}
		if len(seeds) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no seeds given and none configured")
			return
		}

		if req.Async {
			if deps.Store == nil {
				httpError(w, http.StatusServiceUnavailable, "unavailable", "job queue is not configured")
				return
			}
			id, err := ingest.EnqueueBuild(deps.Store, seeds)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to queue build: %v", err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
			return
		}

		writeJSON(w, http.StatusOK, deps.Builder.Build(r.Context(), seeds))
	}
}

// DocumentSummary describes one indexed page.
type DocumentSummary struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Chars int    `json:"chars"`
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs := deps.Retriever.Documents()
		out := make([]DocumentSummary, len(docs))
		for i, d := range docs {
			out[i] = documentSummary(d)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":     len(out),
			"documents": out,
		})
	}
}

// JobView is a queued build as returned by the API.
type JobView struct {
	storage.Job
	Result json.RawMessage `json:"result,omitempty"`
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "job queue is not configured")
			return
		}

		job, err := deps.Store.GetJob(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		view := JobView{Job: job}
		if job.ResultJSON != "" {
			view.Result = json.RawMessage(job.ResultJSON)
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleListTickets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "ticket history is not configured")
			return
		}

		q := r.URL.Query()
		filter := storage.TicketFilter{
			Topic:     q.Get("topic"),
			Sentiment: q.Get("sentiment"),
			Priority:  q.Get("priority"),
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		tickets, err := deps.Store.ListTickets(filter, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tickets: %v", err)
			return
		}
		if tickets == nil {
			tickets = []storage.StoredTicket{}
		}
		writeJSON(w, http.StatusOK, tickets)
	}
}

func handleGetTicket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "ticket history is not configured")
			return
		}

		t, err := deps.Store.GetTicket(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func handleTicketStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "ticket history is not configured")
			return
		}

		stats, err := deps.Store.Stats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// decodeBody reads a size-limited JSON body into v. On failure it writes a
// 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func clampTopK(k, fallback int) int {
	if k <= 0 {
		return fallback
	}
	if k > maxTopK {
		return maxTopK
	}
	return k
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

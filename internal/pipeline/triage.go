// Package pipeline chains the classification and answer engines into a
// single triage step for incoming tickets.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/supportpilot/internal/answer"
	"github.com/kalambet/supportpilot/internal/labels"
	"github.com/kalambet/supportpilot/internal/metrics"
	"github.com/kalambet/supportpilot/internal/ticket"
)

// Route labels recorded for each triaged ticket.
const (
	RouteAnswered = "answered"
	RouteRouted   = "routed"
)

// Classifier labels a ticket.
type Classifier interface {
	Classify(ctx context.Context, title, description string) ticket.Classification
}

// Answerer produces a grounded answer for a question within a topic.
type Answerer interface {
	Answer(ctx context.Context, query, topic string) answer.Result
}

// Resolution is the outcome of triaging one ticket: its classification and
// either a generated answer or the message telling the customer where the
// ticket was routed.
type Resolution struct {
	Classification ticket.Classification `json:"classification"`
	Answerable     bool                  `json:"answerable"`
	Answer         *answer.Result        `json:"answer,omitempty"`
	RoutingMessage string                `json:"routing_message,omitempty"`
	DurationMs     int64                 `json:"duration_ms"`
}

// Resolver classifies tickets and answers the ones whose topic the
// documentation covers.
type Resolver struct {
	classifier Classifier
	answerer   Answerer
	metrics    *metrics.Metrics
}

// NewResolver creates a Resolver wired to both engines.
func NewResolver(c Classifier, a Answerer, m *metrics.Metrics) *Resolver {
	return &Resolver{classifier: c, answerer: a, metrics: m}
}

// Resolve runs the triage pipeline on t:
//  1. Classify the ticket
//  2. If the topic is answerable, answer the ticket text within that topic
//  3. Otherwise return the routing message
//
// Resolve never fails; both engines fold their own errors into fallbacks.
func (r *Resolver) Resolve(ctx context.Context, t ticket.Ticket) (res Resolution) {
	start := time.Now()
	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	res.Classification = r.classifier.Classify(ctx, t.Title, t.Description)
	topic := res.Classification.Topic

	if !labels.IsAnswerable(topic) {
		res.RoutingMessage = RoutingMessage(topic)
		r.metrics.ObserveRoute(RouteRouted)
		slog.Debug("triage: ticket routed", "ticket_id", t.ID, "topic", topic)
		return res
	}

	a := r.answerer.Answer(ctx, t.Text(), string(topic))
	res.Answerable = true
	res.Answer = &a
	r.metrics.ObserveRoute(RouteAnswered)
	slog.Debug("triage: ticket answered", "ticket_id", t.ID, "topic", topic, "sources", len(a.Sources))
	return res
}

// RoutingMessage is shown for tickets whose topic is handed to a human team.
func RoutingMessage(topic labels.Topic) string {
	return fmt.Sprintf("This ticket has been classified as a '%s' issue and routed to the appropriate team.", topic)
}

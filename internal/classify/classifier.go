// Package classify assigns a topic, sentiment and priority to support
// tickets with a single chat completion per ticket.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/labels"
	"github.com/kalambet/supportpilot/internal/metrics"
	"github.com/kalambet/supportpilot/internal/ticket"
)

const (
	defaultTimeout = 30 * time.Second
	temperature    = 0.1
	maxTokens      = 500
)

// ErrNoJSONObject is returned when a model response contains no '{'.
var ErrNoJSONObject = errors.New("no JSON object in response")

// Chatter is the chat completion dependency of the Classifier.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, opts engine.ChatOptions) (string, error)
}

// Default returns the classification used whenever the model output cannot
// be turned into a valid one.
func Default() ticket.Classification {
	return ticket.Classification{
		Topic:     labels.TopicProduct,
		Sentiment: labels.SentimentNeutral,
		Priority:  labels.PriorityMedium,
		Reasoning: "Default classification due to parsing error",
	}
}

// Classifier labels tickets using a chat model.
type Classifier struct {
	client      Chatter
	model       string
	product     Product
	timeout     time.Duration
	concurrency int
	metrics     *metrics.Metrics
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout bounds each model call. Values <= 0 keep the default of 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency sets how many tickets ClassifyBulk classifies at once.
// Values < 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(c *Classifier) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// WithProduct sets the product named in the prompt.
func WithProduct(p Product) Option {
	return func(c *Classifier) { c.product = p }
}

// WithMetrics records classification outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// New creates a Classifier using the given chat client and model name.
func New(client Chatter, model string, opts ...Option) *Classifier {
	c := &Classifier{
		client:      client,
		model:       model,
		product:     DefaultProduct,
		timeout:     defaultTimeout,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify labels one ticket. It always returns a valid classification: on
// any failure (transport error, timeout, no JSON, malformed JSON, a label
// outside its set) it returns Default().
func (c *Classifier) Classify(ctx context.Context, title, description string) ticket.Classification {
	start := time.Now()

	result, err := c.classify(ctx, title, description)
	if err != nil {
		slog.Warn("ticket classification failed, using default", "error", err, "title", title)
		result = Default()
		c.metrics.ObserveClassification(metrics.OutcomeFallback, string(result.Topic), time.Since(start).Seconds())
		return result
	}

	c.metrics.ObserveClassification(metrics.OutcomeOK, string(result.Topic), time.Since(start).Seconds())
	return result
}

func (c *Classifier) classify(ctx context.Context, title, description string) (ticket.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Chat(ctx, c.model, BuildPrompt(c.product, title, description), engine.ChatOptions{
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return ticket.Classification{}, fmt.Errorf("chat: %w", err)
	}
	return Parse(raw)
}

// rawClassification is the JSON object the model is asked to produce.
type rawClassification struct {
	Topic     string `json:"topic"`
	Sentiment string `json:"sentiment"`
	Priority  string `json:"priority"`
	Reasoning string `json:"reasoning"`
}

// Parse extracts the first JSON object from raw model output and validates
// its labels. Text before the object and after it is ignored.
func Parse(raw string) (ticket.Classification, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ticket.Classification{}, ErrNoJSONObject
	}

	var rc rawClassification
	if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&rc); err != nil {
		return ticket.Classification{}, fmt.Errorf("decoding classification: %w", err)
	}

	topic, err := labels.ParseTopic(rc.Topic)
	if err != nil {
		return ticket.Classification{}, err
	}
	sentiment, err := labels.ParseSentiment(rc.Sentiment)
	if err != nil {
		return ticket.Classification{}, err
	}
	priority, err := labels.ParsePriority(rc.Priority)
	if err != nil {
		return ticket.Classification{}, err
	}

	return ticket.Classification{
		Topic:     topic,
		Sentiment: sentiment,
		Priority:  priority,
		Reasoning: rc.Reasoning,
	}, nil
}

// ClassifyBulk classifies every ticket independently and returns the
// annotated copies in input order. A failure on one ticket yields the
// default classification for that ticket only.
func (c *Classifier) ClassifyBulk(ctx context.Context, tickets []ticket.Ticket) []ticket.Classified {
	if len(tickets) == 0 {
		return nil
	}

	results := make([]ticket.Classified, len(tickets))
	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, t := range tickets {
		g.Go(func() error {
			results[i] = ticket.Classified{
				Ticket:         t,
				Classification: c.Classify(ctx, t.Title, t.Description),
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

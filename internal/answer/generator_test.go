package answer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/supportpilot/internal/classify"
	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/retrieval"
)

type mockSearcher struct {
	results []retrieval.Result
	topK    int
	query   string
}

func (m *mockSearcher) Search(_ context.Context, query string, topK int) []retrieval.Result {
	m.query = query
	m.topK = topK
	if len(m.results) > topK {
		return m.results[:topK]
	}
	return m.results
}

type mockChatter struct {
	response string
	err      error
	delay    time.Duration
	calls    int
	messages []engine.Message
	opts     engine.ChatOptions
}

func (m *mockChatter) Chat(ctx context.Context, _ string, messages []engine.Message, opts engine.ChatOptions) (string, error) {
	m.calls++
	m.messages = messages
	m.opts = opts
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func sampleResults() []retrieval.Result {
	return []retrieval.Result{
		{URL: "https://docs.example.com/sso", Title: "SSO setup", Content: "Configure Okta as identity provider.", Similarity: 0.9},
		{URL: "https://docs.example.com/saml", Title: "SAML", Content: "SAML assertions.", Similarity: 0.8},
		{URL: "https://docs.example.com/scim", Title: "SCIM", Content: "SCIM provisioning.", Similarity: 0.7},
	}
}

func TestAnswer_Grounded(t *testing.T) {
	searcher := &mockSearcher{results: sampleResults()}
	chat := &mockChatter{response: "  Use the SSO settings page.\n"}
	g := New(searcher, chat, "gpt-3.5-turbo")

	got := g.Answer(context.Background(), "How do I set up Okta?", "SSO")

	want := Result{
		Answer:  "Use the SSO settings page.",
		Sources: []string{"https://docs.example.com/sso", "https://docs.example.com/saml", "https://docs.example.com/scim"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Answer() = %+v, want %+v", got, want)
	}
	if searcher.topK != 3 {
		t.Errorf("topK = %d, want 3", searcher.topK)
	}
	if chat.opts.Temperature != 0.3 || chat.opts.MaxTokens != 500 {
		t.Errorf("chat options = %+v, want temperature 0.3 max tokens 500", chat.opts)
	}
	user := chat.messages[len(chat.messages)-1].Content
	for _, want := range []string{"User Question: How do I set up Okta?", "Topic: SSO", "Source: SSO setup\nContent: Configure Okta as identity provider...."} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnswer_EmptyIndex(t *testing.T) {
	chat := &mockChatter{response: "should not be used"}
	got := New(&mockSearcher{}, chat, "m").Answer(context.Background(), "anything", "How-to")

	if got.Answer != NotFoundAnswer {
		t.Errorf("Answer = %q, want NotFoundAnswer", got.Answer)
	}
	if got.Sources == nil || len(got.Sources) != 0 {
		t.Errorf("Sources = %#v, want empty non-nil slice", got.Sources)
	}
	if chat.calls != 0 {
		t.Errorf("chat called %d times, want 0", chat.calls)
	}
}

func TestAnswer_Failures(t *testing.T) {
	tests := []struct {
		name string
		chat *mockChatter
		opts []Option
	}{
		{"transport error", &mockChatter{err: errors.New("connection refused")}, nil},
		{"empty completion", &mockChatter{response: "   "}, nil},
		{"timeout", &mockChatter{response: "late", delay: 5 * time.Second}, []Option{WithTimeout(50 * time.Millisecond)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(&mockSearcher{results: sampleResults()}, tt.chat, "m", tt.opts...).Answer(context.Background(), "q", "SSO")
			if got.Answer != ErrorAnswer {
				t.Errorf("Answer = %q, want ErrorAnswer", got.Answer)
			}
			if len(got.Sources) != 0 {
				t.Errorf("Sources = %v, want empty", got.Sources)
			}
		})
	}
}

func TestAnswer_CustomTopKAndProduct(t *testing.T) {
	searcher := &mockSearcher{results: sampleResults()}
	chat := &mockChatter{response: "ok"}
	g := New(searcher, chat, "m", WithTopK(1), WithProduct(classify.Product{Name: "Acme", Description: "a widget store"}))

	got := g.Answer(context.Background(), "q", "Product")
	if len(got.Sources) != 1 {
		t.Errorf("Sources = %v, want 1", got.Sources)
	}
	if !strings.Contains(chat.messages[0].Content, "Acme") {
		t.Errorf("system message = %q, want product name", chat.messages[0].Content)
	}
	if !strings.Contains(chat.messages[1].Content, "Acme, a widget store") {
		t.Errorf("prompt does not describe the product")
	}
}

type reverseReranker struct {
	drop  bool
	calls int
}

func (r *reverseReranker) Rerank(_ context.Context, _ string, results []retrieval.Result) []retrieval.Result {
	r.calls++
	if r.drop {
		return nil
	}
	out := make([]retrieval.Result, len(results))
	for i, res := range results {
		out[len(results)-1-i] = res
	}
	return out
}

func TestAnswer_Reranker(t *testing.T) {
	chat := &mockChatter{response: "ok"}
	rr := &reverseReranker{}
	g := New(&mockSearcher{results: sampleResults()}, chat, "m", WithReranker(rr))

	got := g.Answer(context.Background(), "q", "SSO")

	want := []string{"https://docs.example.com/scim", "https://docs.example.com/saml", "https://docs.example.com/sso"}
	if !reflect.DeepEqual(got.Sources, want) {
		t.Errorf("Sources = %v, want %v", got.Sources, want)
	}
	if rr.calls != 1 {
		t.Errorf("reranker called %d times, want 1", rr.calls)
	}
}

func TestAnswer_RerankerDropsEverything(t *testing.T) {
	chat := &mockChatter{response: "should not be used"}
	g := New(&mockSearcher{results: sampleResults()}, chat, "m", WithReranker(&reverseReranker{drop: true}))

	got := g.Answer(context.Background(), "q", "SSO")
	if got.Answer != NotFoundAnswer {
		t.Errorf("Answer = %q, want NotFoundAnswer", got.Answer)
	}
	if chat.calls != 0 {
		t.Errorf("chat called %d times, want 0", chat.calls)
	}
}

func TestAnswer_RerankerSkippedForEmptyIndex(t *testing.T) {
	rr := &reverseReranker{}
	New(&mockSearcher{}, &mockChatter{}, "m", WithReranker(rr)).Answer(context.Background(), "q", "SSO")
	if rr.calls != 0 {
		t.Errorf("reranker called %d times, want 0", rr.calls)
	}
}

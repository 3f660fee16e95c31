package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const chatCompletionJSON = `{"id":"chatcmpl-1","object":"chat.completion","created":0,"model":"gpt-3.5-turbo","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}]}`

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIEngine(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
}

func TestOpenAIEngine_Chat(t *testing.T) {
	var got map[string]any
	var auth string
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(strings.Replace(chatCompletionJSON, "%s", `"classified"`, 1)))
	})

	out, err := e.Chat(context.Background(), "gpt-3.5-turbo", []Message{
		{Role: RoleSystem, Content: "You classify tickets."},
		{Role: RoleUser, Content: "Title: x"},
	}, ChatOptions{Temperature: 0.1, MaxTokens: 500})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "classified" {
		t.Errorf("Chat() = %q, want %q", out, "classified")
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer sk-test")
	}
	if got["model"] != "gpt-3.5-turbo" {
		t.Errorf("model = %v, want gpt-3.5-turbo", got["model"])
	}
	if got["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", got["temperature"])
	}
	if got["max_tokens"] != float64(500) {
		t.Errorf("max_tokens = %v, want 500", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v, want 2 entries", got["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("messages[0].role = %v, want system", first["role"])
	}
}

func TestOpenAIEngine_ChatEmptyContent(t *testing.T) {
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(strings.Replace(chatCompletionJSON, "%s", `""`, 1)))
	})

	_, err := e.Chat(context.Background(), "gpt-3.5-turbo", []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIEngine_NoRetries(t *testing.T) {
	var calls atomic.Int32
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	if _, err := e.Chat(context.Background(), "gpt-3.5-turbo", []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestOpenAIEngine_Embed(t *testing.T) {
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],"model":"text-embedding-ada-002","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	})

	vec, err := e.Embed(context.Background(), "text-embedding-ada-002", "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	want := []float32{0.5, -0.25, 1}
	if len(vec) != len(want) {
		t.Fatalf("got %d floats, want %d", len(vec), len(want))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestOpenAIEngine_Models(t *testing.T) {
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/models"):
			w.Write([]byte(`{"object":"list","data":[{"id":"gpt-3.5-turbo","object":"model","created":0,"owned_by":"openai"}]}`))
		case strings.HasSuffix(r.URL.Path, "/models/gpt-3.5-turbo"):
			w.Write([]byte(`{"id":"gpt-3.5-turbo","object":"model","created":0,"owned_by":"openai"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"not found","type":"invalid_request_error"}}`))
		}
	})

	ctx := context.Background()
	if !e.IsRunning(ctx) {
		t.Error("IsRunning() = false, want true")
	}
	names, err := e.ListModels(ctx)
	if err != nil || len(names) != 1 || names[0] != "gpt-3.5-turbo" {
		t.Errorf("ListModels() = %v, %v", names, err)
	}
	if !e.HasModel(ctx, "gpt-3.5-turbo") {
		t.Error("HasModel(gpt-3.5-turbo) = false, want true")
	}
	if e.HasModel(ctx, "gpt-unknown") {
		t.Error("HasModel(gpt-unknown) = true, want false")
	}
	if err := e.PullModel(ctx, "gpt-unknown", nil); !errors.Is(err, ErrPullUnsupported) {
		t.Errorf("PullModel error = %v, want ErrPullUnsupported", err)
	}
}

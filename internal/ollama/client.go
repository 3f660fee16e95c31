// Package ollama is a minimal client for the parts of the Ollama REST API the
// classifier and the documentation index use: chat, embeddings and model
// provisioning.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	probeTimeout = 2 * time.Second
	listTimeout  = 10 * time.Second

	// Cap on error bodies kept for APIError.
	maxErrorBody = 4 << 10
)

// Message is a chat message in the Ollama wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling parameters sent with a chat request.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// APIError is a non-200 answer from the server. Message holds the "error"
// field of the body when the server sent one.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ollama %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ollama %s: status %d", e.Op, e.StatusCode)
}

// Client talks to one Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for baseURL. Request deadlines come from the
// caller's context.
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{})
}

// NewWithHTTPClient creates a Client that sends requests through hc.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// IsRunning reports whether the server answers the model listing.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.send(ctx, "tags", http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ListModels returns the names of all locally pulled models, tags included.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.call(ctx, "tags", http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether name is pulled. A bare name matches any tag.
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullModel downloads a model and reads the progress stream to its end.
// onProgress may be nil. A failure reported inside the stream is returned
// as an error.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.send(ctx, "pull "+name, http.MethodPost, "/api/pull", pullRequest{Name: name, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var line struct {
			PullProgress
			Error string `json:"error"`
		}
		if err := dec.Decode(&line); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if line.Error != "" {
			return fmt.Errorf("pulling %s: %s", name, line.Error)
		}
		if onProgress != nil {
			onProgress(line.PullProgress)
		}
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat returns the assistant reply to messages. opts may be nil.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts *Options) (string, error) {
	var out chatResponse
	err := c.call(ctx, "chat", http.MethodPost, "/api/chat", chatRequest{
		Model:    model,
		Messages: messages,
		Options:  opts,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message.Content, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var out embedResponse
	if err := c.call(ctx, "embed", http.MethodPost, "/api/embed", embedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embeddings array")
	}
	return out.Embeddings[0], nil
}

// call sends in as JSON and decodes the 200 response into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.send(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: decoding response: %w", op, err)
	}
	return nil
}

// send performs the request and returns the response only on 200. Any other
// status is turned into an *APIError and the body is closed.
func (c *Client) send(ctx context.Context, op, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("ollama %s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: creating request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: %w", op, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	if raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Error
	}
	return nil, apiErr
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/supportpilot/internal/config"
)

// Answers and builds wait on the model provider.
const clientTimeout = 5 * time.Minute

// apiClient calls the HTTP API of a running `supportpilot serve`.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return clientFor(cfg), nil
}

func clientFor(cfg config.Config) *apiClient {
	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.Server.APIToken,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, payload)
}

func (c *apiClient) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `supportpilot serve` running? (%w)", err)
	}
	return resp, nil
}

// serverError is an error status from the API, with the message of its
// {"error": {...}} envelope when the body has one.
type serverError struct {
	Status  int
	Type    string
	Message string
}

func (e *serverError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Type, e.Message)
}

// decodeJSON decodes a successful response into v and closes the body.
// Status codes of 400 and above become a *serverError.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusBadRequest {
		return json.NewDecoder(resp.Body).Decode(v)
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	serr := &serverError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		serr.Message, serr.Type = envelope.Error.Message, envelope.Error.Type
	}
	return serr
}

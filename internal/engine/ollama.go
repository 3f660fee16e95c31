package engine

import (
	"context"
	"net/http"

	"github.com/kalambet/supportpilot/internal/ollama"
)

var _ Backend = (*OllamaEngine)(nil)

// OllamaEngine serves chat and embeddings from a local Ollama server.
// Embed and the model listing methods come straight from the client.
type OllamaEngine struct {
	*ollama.Client
}

// NewOllamaEngine creates an OllamaEngine for the server at baseURL. A nil
// hc uses a client without a global timeout.
func NewOllamaEngine(baseURL string, hc *http.Client) *OllamaEngine {
	if hc == nil {
		hc = &http.Client{}
	}
	return &OllamaEngine{Client: ollama.NewWithHTTPClient(baseURL, hc)}
}

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	wire := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, ollama.Message(m))
	}

	out, err := e.Client.Chat(ctx, model, wire, &ollama.Options{Temperature: opts.Temperature, NumPredict: opts.MaxTokens})
	switch {
	case err != nil:
		return "", err
	case out == "":
		return "", ErrEmptyResponse
	}
	return out, nil
}

// PullModel pulls name, translating progress lines for onProgress.
func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	if onProgress == nil {
		return e.Client.PullModel(ctx, name, nil)
	}
	return e.Client.PullModel(ctx, name, func(p ollama.PullProgress) {
		onProgress(PullProgress(p))
	})
}

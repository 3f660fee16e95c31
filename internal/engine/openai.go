package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var _ Backend = (*OpenAIEngine)(nil)

// ErrPullUnsupported is returned by hosted providers that cannot download models on demand.
var ErrPullUnsupported = errors.New("provider does not support pulling models")

// OpenAIEngine talks to the OpenAI API, or any server that speaks its chat
// completions and embeddings endpoints, through the official SDK.
type OpenAIEngine struct {
	sdk openai.Client
}

// OpenAIConfig holds the connection settings for NewOpenAIEngine.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty uses the SDK default
	HTTPClient *http.Client
}

// NewOpenAIEngine creates an engine for the given account. The SDK's own
// retry loop is disabled so a failed call surfaces once to the caller.
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAIEngine{sdk: openai.NewClient(opts...)}
}

func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: param.NewOpt(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(opts.MaxTokens))
	}

	resp, err := e.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *OpenAIEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	resp, err := e.sdk.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding: %w", ErrEmptyResponse)
	}

	emb := resp.Data[0].Embedding
	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}
	return out, nil
}

func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.sdk.Models.List(ctx)
	return err == nil
}

func (e *OpenAIEngine) ListModels(ctx context.Context) ([]string, error) {
	page, err := e.sdk.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, len(page.Data))
	for i, m := range page.Data {
		names[i] = m.ID
	}
	return names, nil
}

func (e *OpenAIEngine) HasModel(ctx context.Context, name string) bool {
	_, err := e.sdk.Models.Get(ctx, name)
	return err == nil
}

func (e *OpenAIEngine) PullModel(_ context.Context, name string, _ func(PullProgress)) error {
	return fmt.Errorf("model %s: %w", name, ErrPullUnsupported)
}

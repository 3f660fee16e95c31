package engine

import (
	"fmt"
	"net/http"
	"strings"
)

// Provider names accepted by Detect.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Detect returns the backend named by cfg.Provider.
func Detect(cfg DetectConfig) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAIEngine(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			HTTPClient: cfg.HTTPClient,
		}), nil
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllamaEngine(baseURL, cfg.HTTPClient), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want %q or %q)", cfg.Provider, ProviderOpenAI, ProviderOllama)
	}
}

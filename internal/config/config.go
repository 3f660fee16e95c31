package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider names accepted by llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	LLM       LLMConfig
	Classify  ClassifyConfig
	Scraper   ScraperConfig
	Knowledge KnowledgeConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Product   ProductConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LogConfig struct {
	Level string
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	ChatModel   string
	AnswerModel string
	EmbedModel  string
	Timeout     string
}

type ClassifyConfig struct {
	Concurrency int
}

type ScraperConfig struct {
	Timeout   string
	Interval  string
	UserAgent string
}

type KnowledgeConfig struct {
	Seeds        string
	MaxPages     int
	BuildOnStart bool
}

type RetrievalConfig struct {
	TopK   int
	Rerank bool
}

type StorageConfig struct {
	DataDir string
}

type ProductConfig struct {
	Name        string
	Description string
}

// Per-provider model defaults, applied to model keys left empty.
var providerModels = map[string]struct{ chat, embed string }{
	ProviderOpenAI: {chat: "gpt-3.5-turbo", embed: "text-embedding-ada-002"},
	ProviderOllama: {chat: "llama3.2", embed: "nomic-embed-text"},
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Timeout:  "30s",
		},
		Classify: ClassifyConfig{
			Concurrency: 1,
		},
		Scraper: ScraperConfig{
			Timeout:   "10s",
			Interval:  "1s",
			UserAgent: "supportpilot/1.0 (+docs indexer)",
		},
		Knowledge: KnowledgeConfig{
			Seeds:        "https://docs.atlan.com,https://developer.atlan.com",
			MaxPages:     5,
			BuildOnStart: true,
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Product: ProductConfig{
			Name:        "Atlan",
			Description: "a data catalog platform",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at FilePath,
// SUPPORTPILOT_* environment variables and, for the LLM API key only, the
// platform secret store (macOS Keychain, or secrets.yaml next to the config
// file elsewhere). OPENAI_API_KEY is accepted for the API key.
func Load() (Config, error) {
	b, err := openFileBackend(FilePath())
	if err != nil {
		return Config{}, err
	}
	return loadWith(b, platformSecrets{})
}

type secretStore interface {
	Secret(name string) (string, error)
}

func loadWith(b Backend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		if key, err := secrets.Secret("llm_api_key"); err == nil {
			cfg.LLM.APIKey = key
		}
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	models, ok := providerModels[cfg.LLM.Provider]
	if !ok {
		return Config{}, fmt.Errorf("invalid llm.provider %q: must be %q or %q", cfg.LLM.Provider, ProviderOpenAI, ProviderOllama)
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = models.chat
	}
	if cfg.LLM.AnswerModel == "" {
		cfg.LLM.AnswerModel = cfg.LLM.ChatModel
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = models.embed
	}

	if cfg.LLM.Provider == ProviderOpenAI && cfg.LLM.APIKey == "" {
		return Config{}, errors.New("missing required config: LLM API key. " +
			"Set SUPPORTPILOT_LLM_API_KEY or OPENAI_API_KEY" + secretHint())
	}

	for key, raw := range map[string]string{
		"llm.timeout":      cfg.LLM.Timeout,
		"scraper.timeout":  cfg.Scraper.Timeout,
		"scraper.interval": cfg.Scraper.Interval,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	return cfg, nil
}

// TimeoutDuration returns the per-call LLM timeout.
func (c LLMConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// TimeoutDuration returns the per-request fetch timeout.
func (c ScraperConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// IntervalDuration returns the minimum delay between page fetches.
func (c ScraperConfig) IntervalDuration() time.Duration {
	return parseDuration(c.Interval, time.Second)
}

// SeedURLs splits the comma-separated seed list, dropping blanks.
func (c KnowledgeConfig) SeedURLs() []string {
	var urls []string
	for _, s := range strings.Split(c.Seeds, ",") {
		if s = strings.TrimSpace(s); s != "" {
			urls = append(urls, s)
		}
	}
	return urls
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

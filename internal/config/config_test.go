package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type stubSecrets struct {
	value string
	err   error
}

func (m stubSecrets) Secret(name string) (string, error) {
	return m.value, m.err
}

type mapBackend map[string]string

func newMapBackend() mapBackend { return mapBackend{} }

func (b mapBackend) Get(key string) (string, bool, error) {
	v, ok := b[key]
	return v, ok, nil
}

func (b mapBackend) Set(key, val string) error {
	b[key] = val
	return nil
}

// clearEnv blanks every variable the loader reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	t.Setenv("OPENAI_API_KEY", "")
}

// TestDefaults verifies all default values are applied when nothing is configured.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := loadWith(newMapBackend(), stubSecrets{err: errors.New("no keychain")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Server.Port", cfg.Server.Port, 4100},
		{"Log.Level", cfg.Log.Level, "info"},
		{"LLM.Provider", cfg.LLM.Provider, "openai"},
		{"LLM.ChatModel", cfg.LLM.ChatModel, "gpt-3.5-turbo"},
		{"LLM.AnswerModel", cfg.LLM.AnswerModel, "gpt-3.5-turbo"},
		{"LLM.EmbedModel", cfg.LLM.EmbedModel, "text-embedding-ada-002"},
		{"LLM.APIKey", cfg.LLM.APIKey, "sk-test"},
		{"Classify.Concurrency", cfg.Classify.Concurrency, 1},
		{"Knowledge.MaxPages", cfg.Knowledge.MaxPages, 5},
		{"Knowledge.BuildOnStart", cfg.Knowledge.BuildOnStart, true},
		{"Retrieval.TopK", cfg.Retrieval.TopK, 3},
		{"Retrieval.Rerank", cfg.Retrieval.Rerank, false},
		{"Product.Name", cfg.Product.Name, "Atlan"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if got := cfg.LLM.TimeoutDuration(); got != 30*time.Second {
		t.Errorf("LLM timeout = %v, want 30s", got)
	}
	if got := cfg.Scraper.TimeoutDuration(); got != 10*time.Second {
		t.Errorf("scraper timeout = %v, want 10s", got)
	}
	if got := cfg.Scraper.IntervalDuration(); got != time.Second {
		t.Errorf("scraper interval = %v, want 1s", got)
	}
	seeds := cfg.Knowledge.SeedURLs()
	if len(seeds) != 2 || seeds[0] != "https://docs.atlan.com" || seeds[1] != "https://developer.atlan.com" {
		t.Errorf("SeedURLs = %v", seeds)
	}
}

// TestBackendValues verifies that all kinds of keys are read from the backend.
func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b["server.port"] = "5000"
	b["classify.concurrency"] = "4"
	b["llm.provider"] = "Ollama"
	b["llm.base_url"] = "http://gpu-box:11434"
	b["knowledge.seeds"] = " https://docs.example.com , ,https://dev.example.com"
	b["knowledge.build_on_start"] = "false"
	b["scraper.interval"] = "250ms"

	cfg, err := loadWith(b, stubSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Classify.Concurrency != 4 {
		t.Errorf("Classify.Concurrency = %d, want 4", cfg.Classify.Concurrency)
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Errorf("LLM.Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.LLM.ChatModel != "llama3.2" || cfg.LLM.EmbedModel != "nomic-embed-text" {
		t.Errorf("ollama models = %q/%q, want llama3.2/nomic-embed-text", cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
	}
	if cfg.Knowledge.BuildOnStart {
		t.Error("Knowledge.BuildOnStart = true, want false")
	}
	if got := cfg.Knowledge.SeedURLs(); len(got) != 2 || got[1] != "https://dev.example.com" {
		t.Errorf("SeedURLs = %v", got)
	}
	if cfg.Scraper.IntervalDuration() != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", cfg.Scraper.IntervalDuration())
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b["retrieval.top_k"] = "5"
	b["llm.chat_model"] = "gpt-4o-mini"

	t.Setenv("SUPPORTPILOT_RETRIEVAL_TOP_K", "7")
	t.Setenv("SUPPORTPILOT_LLM_CHAT_MODEL", "gpt-4o")
	t.Setenv("SUPPORTPILOT_LLM_API_KEY", "env-key")
	t.Setenv("OPENAI_API_KEY", "ignored")

	cfg, err := loadWith(b, stubSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieval.TopK != 7 {
		t.Errorf("Retrieval.TopK = %d, want 7", cfg.Retrieval.TopK)
	}
	if cfg.LLM.ChatModel != "gpt-4o" || cfg.LLM.AnswerModel != "gpt-4o" {
		t.Errorf("models = %q/%q, want gpt-4o", cfg.LLM.ChatModel, cfg.LLM.AnswerModel)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want %q", cfg.LLM.APIKey, "env-key")
	}
}

// TestEnvOverride_InvalidIntKeepsValue verifies bad env values fall back.
func TestEnvOverride_InvalidIntKeepsValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("SUPPORTPILOT_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newMapBackend(), stubSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100", cfg.Server.Port)
	}
}

// TestMissingRequiredField verifies a clear error when the API key is missing everywhere.
func TestMissingRequiredField(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(newMapBackend(), stubSecrets{err: errors.New("not found")})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}

	want := "missing required config"
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("error = %q, want it to contain %q", got, want)
	}
}

// TestOllamaNeedsNoKey verifies the API key is only required for OpenAI.
func TestOllamaNeedsNoKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPPORTPILOT_LLM_PROVIDER", "ollama")

	if _, err := loadWith(newMapBackend(), stubSecrets{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPPORTPILOT_LLM_PROVIDER", "mlx")

	_, err := loadWith(newMapBackend(), stubSecrets{})
	if err == nil || !strings.Contains(err.Error(), "llm.provider") {
		t.Errorf("error = %v, want invalid provider error", err)
	}
}

func TestInvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("SUPPORTPILOT_SCRAPER_TIMEOUT", "ten seconds")

	_, err := loadWith(newMapBackend(), stubSecrets{})
	if err == nil || !strings.Contains(err.Error(), "scraper.timeout") {
		t.Errorf("error = %v, want invalid duration error", err)
	}
}

// TestSecretStoreFallback verifies the secret store is consulted when no API key is in env.
func TestSecretStoreFallback(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(), stubSecrets{value: "keychain-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "keychain-secret" {
		t.Errorf("APIKey = %q, want %q", cfg.LLM.APIKey, "keychain-secret")
	}
}

func TestSetKey(t *testing.T) {
	b := newMapBackend()

	if err := setKeyWith(b, "retrieval.top_k", "4"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if b["retrieval.top_k"] != "4" {
		t.Errorf("retrieval.top_k = %q, want 4", b["retrieval.top_k"])
	}
	if err := setKeyWith(b, "knowledge.build_on_start", "FALSE"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if b["knowledge.build_on_start"] != "false" {
		t.Errorf("knowledge.build_on_start = %q, want false", b["knowledge.build_on_start"])
	}
	if err := setKeyWith(b, "llm.chat_model", "gpt-4o"); err != nil {
		t.Fatalf("set string: %v", err)
	}

	errCases := []struct{ key, value string }{
		{"retrieval.top_k", "many"},
		{"knowledge.build_on_start", "maybe"},
		{"llm.api_key", "sk-secret"},
		{"no.such.key", "x"},
	}
	for _, c := range errCases {
		if err := setKeyWith(b, c.key, c.value); err == nil {
			t.Errorf("setKeyWith(%q, %q) succeeded, want error", c.key, c.value)
		}
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Server.APIToken = "token"

	for _, k := range ShowAll(cfg) {
		if strings.Contains(k.Value, "sk-secret") || k.Key == "server.api_token" {
			t.Errorf("ShowAll exposed secret %s", k.Key)
		}
	}
	keys := ValidKeys()
	if len(keys) != len(specs)-2 {
		t.Errorf("ValidKeys = %d keys, want %d", len(keys), len(specs)-2)
	}
}

func TestBackendInvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "k")
	b := newMapBackend()
	b["classify.concurrency"] = "lots"

	_, err := loadWith(b, stubSecrets{})
	if err == nil || !strings.Contains(err.Error(), "classify.concurrency") {
		t.Errorf("error = %v, want invalid value error", err)
	}
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	b, err := openFileBackend(path)
	if err != nil {
		t.Fatalf("openFileBackend on missing file: %v", err)
	}
	if _, ok, _ := b.Get("server.port"); ok {
		t.Error("empty backend reported server.port as set")
	}
	if err := setKeyWith(b, "server.port", " 5100 "); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if err := setKeyWith(b, "knowledge.seeds", "https://docs.example.com"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}

	reopened, err := openFileBackend(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	if v, ok, _ := reopened.Get("server.port"); !ok || v != "5100" {
		t.Errorf("server.port = %q (set %v), want 5100", v, ok)
	}

	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "k")
	cfg, err := loadWith(reopened, stubSecrets{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 5100 {
		t.Errorf("Server.Port = %d, want 5100", cfg.Server.Port)
	}
	if got := cfg.Knowledge.SeedURLs(); len(got) != 1 || got[0] != "https://docs.example.com" {
		t.Errorf("SeedURLs = %v", got)
	}
}

func TestFileBackend_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server.port: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := openFileBackend(path); err == nil {
		t.Error("openFileBackend accepted malformed YAML")
	}
}

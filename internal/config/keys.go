package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SUPPORTPILOT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "SUPPORTPILOT_SERVER_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "log.level", typ: kString, env: "SUPPORTPILOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "llm.provider", typ: kString, env: "SUPPORTPILOT_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "SUPPORTPILOT_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "SUPPORTPILOT_LLM_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.chat_model", typ: kString, env: "SUPPORTPILOT_LLM_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.answer_model", typ: kString, env: "SUPPORTPILOT_LLM_ANSWER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.AnswerModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.AnswerModel },
	},
	{
		key: "llm.embed_model", typ: kString, env: "SUPPORTPILOT_LLM_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "llm.timeout", typ: kString, env: "SUPPORTPILOT_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "classify.concurrency", typ: kInt, env: "SUPPORTPILOT_CLASSIFY_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Classify.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Classify.Concurrency },
	},
	{
		key: "scraper.timeout", typ: kString, env: "SUPPORTPILOT_SCRAPER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Scraper.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Scraper.Timeout },
	},
	{
		key: "scraper.interval", typ: kString, env: "SUPPORTPILOT_SCRAPER_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Scraper.Interval = v.(string) },
		extract: func(cfg Config) any { return cfg.Scraper.Interval },
	},
	{
		key: "scraper.user_agent", typ: kString, env: "SUPPORTPILOT_SCRAPER_USER_AGENT",
		apply:   func(cfg *Config, v any) { cfg.Scraper.UserAgent = v.(string) },
		extract: func(cfg Config) any { return cfg.Scraper.UserAgent },
	},
	{
		key: "knowledge.seeds", typ: kString, env: "SUPPORTPILOT_KNOWLEDGE_SEEDS",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.Seeds = v.(string) },
		extract: func(cfg Config) any { return cfg.Knowledge.Seeds },
	},
	{
		key: "knowledge.max_pages", typ: kInt, env: "SUPPORTPILOT_KNOWLEDGE_MAX_PAGES",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.MaxPages = v.(int) },
		extract: func(cfg Config) any { return cfg.Knowledge.MaxPages },
	},
	{
		key: "knowledge.build_on_start", typ: kBool, env: "SUPPORTPILOT_KNOWLEDGE_BUILD_ON_START",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.BuildOnStart = v.(bool) },
		extract: func(cfg Config) any { return cfg.Knowledge.BuildOnStart },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "SUPPORTPILOT_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.rerank", typ: kBool, env: "SUPPORTPILOT_RETRIEVAL_RERANK",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Rerank = v.(bool) },
		extract: func(cfg Config) any { return cfg.Retrieval.Rerank },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SUPPORTPILOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "product.name", typ: kString, env: "SUPPORTPILOT_PRODUCT_NAME",
		apply:   func(cfg *Config, v any) { cfg.Product.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Product.Name },
	},
	{
		key: "product.description", typ: kString, env: "SUPPORTPILOT_PRODUCT_DESCRIPTION",
		apply:   func(cfg *Config, v any) { cfg.Product.Description = v.(string) },
		extract: func(cfg Config) any { return cfg.Product.Description },
	},
}

// parse converts a raw string into the value type of the key.
func (s keySpec) parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	case kBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean value for %s: %w", s.key, err)
		}
		return b, nil
	}
	return raw, nil
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// applyBackend copies stored values into cfg. A stored value that does not
// parse is an error, since only SetKey writes the file.
func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			return err
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides applies non-empty SUPPORTPILOT_* variables. A malformed
// variable is reported on stderr and ignored.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s: %v\n", s.env, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/reality-check/internal/secrets"
	"github.com/pdiddy/reality-check/pkg/types"
)

// setDefaults registers every scalar config key so that environment
// variables (REALITY_CHECK_CACHE_ADDR, ...) are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.user_agent", d.Search.UserAgent)
	v.SetDefault("search.max_retries", d.Search.MaxRetries)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.news_api_key", "")
	v.SetDefault("search.google_api_key", "")
	v.SetDefault("search.google_engine_id", "")

	v.SetDefault("cache.addr", d.Cache.Addr)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", d.Cache.DB)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.op_timeout", d.Cache.OpTimeout)
	v.SetDefault("cache.disabled", d.Cache.Disabled)

	v.SetDefault("index.backend", string(d.Index.Backend))
	v.SetDefault("index.addresses", d.Index.Addresses)
	v.SetDefault("index.api_key", "")
	v.SetDefault("index.username", "")
	v.SetDefault("index.password", "")
	v.SetDefault("index.path", d.Index.Path)
	v.SetDefault("index.size", d.Index.Size)
	v.SetDefault("index.dimensions", d.Index.Dimensions)

	v.SetDefault("llm.models", d.LLM.Models)
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.anthropic_base_url", "")
	v.SetDefault("llm.embedding_model", d.LLM.EmbeddingModel)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("pipeline.search_size", d.Pipeline.SearchSize)
	v.SetDefault("pipeline.analyze_top_n", d.Pipeline.AnalyzeTopN)
	v.SetDefault("pipeline.generate_top_n", d.Pipeline.GenerateTopN)
	v.SetDefault("pipeline.history_window", d.Pipeline.HistoryWindow)
	v.SetDefault("pipeline.max_messages", d.Pipeline.MaxMessages)
	v.SetDefault("pipeline.session_idle_ttl", d.Pipeline.SessionIdleTTL)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.api_keys", nil)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_window", d.Server.RateWindow)

	v.SetDefault("keepalive.enabled", d.Keepalive.Enabled)
	v.SetDefault("keepalive.base_url", d.Keepalive.BaseURL)
	v.SetDefault("keepalive.schedule", d.Keepalive.Schedule)
}

// loadConfig decodes the merged viper configuration and fills credentials
// that were left empty from the secrets directory.
func loadConfig(v *viper.Viper, s secrets.Secrets) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	applySecrets(&cfg, s)
	return cfg, nil
}

func applySecrets(cfg *types.Config, s secrets.Secrets) {
	cfg.Search.NewsAPIKey = s.Or(secrets.NewsAPIKey, cfg.Search.NewsAPIKey)
	cfg.Search.GoogleAPIKey = s.Or(secrets.GoogleSearchAPIKey, cfg.Search.GoogleAPIKey)
	cfg.Search.GoogleEngineID = s.Or(secrets.GoogleSearchEngine, cfg.Search.GoogleEngineID)
	cfg.LLM.OpenAIAPIKey = s.Or(secrets.OpenAIAPIKey, cfg.LLM.OpenAIAPIKey)
	cfg.LLM.AnthropicAPIKey = s.Or(secrets.AnthropicAPIKey, cfg.LLM.AnthropicAPIKey)
	cfg.Index.APIKey = s.Or(secrets.ElasticsearchAPIKey, cfg.Index.APIKey)
	cfg.Cache.Password = s.Or(secrets.RedisPassword, cfg.Cache.Password)
	if len(cfg.Server.APIKeys) == 0 {
		cfg.Server.APIKeys = s.List(secrets.APIKeys)
	}
}

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// outbound requests.
type HTTPConfig struct {
	// Timeout bounds a single outbound request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with outbound requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries caps retries on HTTP 429/503 (0 uses the default).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// SearchConfig holds settings for the source providers and the aggregator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// NewsAPIKey authenticates against NewsAPI. Empty disables news search.
	NewsAPIKey string `json:"news_api_key,omitempty" yaml:"news_api_key,omitempty" mapstructure:"news_api_key"`

	// GoogleAPIKey and GoogleEngineID configure Google Custom Search. The
	// web, fact-check and authority providers are disabled when either is empty.
	GoogleAPIKey   string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty" mapstructure:"google_api_key"`
	GoogleEngineID string `json:"google_engine_id,omitempty" yaml:"google_engine_id,omitempty" mapstructure:"google_engine_id"`

	// MaxResults is the aggregate size after ranking (default 25).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// CacheConfig holds settings for the Redis-backed cache store.
type CacheConfig struct {
	Addr     string `json:"addr" yaml:"addr" mapstructure:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `json:"db" yaml:"db" mapstructure:"db"`

	// TTL is how long an aggregate stays cached (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// OpTimeout bounds each individual Redis call (default 2s).
	OpTimeout time.Duration `json:"op_timeout" yaml:"op_timeout" mapstructure:"op_timeout"`

	// Disabled turns the cache into a permanent miss.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`
}

// IndexBackend selects the secondary indexed-search store.
type IndexBackend string

const (
	IndexNone          IndexBackend = "none"
	IndexElasticsearch IndexBackend = "elasticsearch"
	IndexSQLite        IndexBackend = "sqlite"
)

// IndexConfig holds settings for the secondary index.
type IndexConfig struct {
	Backend IndexBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Elasticsearch connection. APIKey takes precedence over basic auth.
	Addresses []string `json:"addresses" yaml:"addresses" mapstructure:"addresses"`
	APIKey    string   `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	Username  string   `json:"username,omitempty" yaml:"username,omitempty" mapstructure:"username"`
	Password  string   `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`

	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Size is how many hits a hybrid query returns (default 10).
	Size int `json:"size" yaml:"size" mapstructure:"size"`

	// Dimensions of the stored embedding vectors (default 768).
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`
}

// ModelProvider selects the wire protocol of a model candidate.
type ModelProvider string

const (
	ProviderOpenAI    ModelProvider = "openai"
	ProviderAnthropic ModelProvider = "anthropic"
)

// ModelCandidate is one entry in the ordered model fallback list.
type ModelCandidate struct {
	Provider ModelProvider `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string        `json:"model" yaml:"model" mapstructure:"model"`
}

// LLMConfig holds settings for text completion and embeddings.
type LLMConfig struct {
	// Models are tried in order until one answers.
	Models []ModelCandidate `json:"models" yaml:"models" mapstructure:"models"`

	OpenAIAPIKey     string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	OpenAIBaseURL    string `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty" mapstructure:"openai_base_url"`
	AnthropicAPIKey  string `json:"anthropic_api_key,omitempty" yaml:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url,omitempty" yaml:"anthropic_base_url,omitempty" mapstructure:"anthropic_base_url"`

	// EmbeddingModel enables query embeddings when set.
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty" mapstructure:"embedding_model"`

	// Timeout bounds a single completion call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// PipelineConfig holds the orchestrator's window sizes.
type PipelineConfig struct {
	// SearchSize is the number of results kept per aggregate (default 25).
	SearchSize int `json:"search_size" yaml:"search_size" mapstructure:"search_size"`

	// AnalyzeTopN results go to credibility analysis (default 10).
	AnalyzeTopN int `json:"analyze_top_n" yaml:"analyze_top_n" mapstructure:"analyze_top_n"`

	// GenerateTopN results go to response synthesis (default 15).
	GenerateTopN int `json:"generate_top_n" yaml:"generate_top_n" mapstructure:"generate_top_n"`

	// HistoryWindow is how many past messages the synthesis sees (default 6).
	HistoryWindow int `json:"history_window" yaml:"history_window" mapstructure:"history_window"`

	// MaxMessages caps the messages kept in a stored conversation; older
	// ones are dropped on save (default 100).
	MaxMessages int `json:"max_messages" yaml:"max_messages" mapstructure:"max_messages"`

	// SessionIdleTTL evicts conversations idle for longer (default 2h).
	SessionIdleTTL time.Duration `json:"session_idle_ttl" yaml:"session_idle_ttl" mapstructure:"session_idle_ttl"`
}

// ServerConfig holds settings for the HTTP and WebSocket surface.
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// APIKeys, when non-empty, are the accepted X-API-Key values.
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty" mapstructure:"api_keys"`

	// RateLimit requests are allowed per client IP within RateWindow.
	RateLimit  int           `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window" mapstructure:"rate_window"`
}

// KeepaliveConfig holds settings for the scheduled self-ping.
type KeepaliveConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Schedule string `json:"schedule" yaml:"schedule" mapstructure:"schedule"`
}

// Config groups all component configurations.
type Config struct {
	Search    SearchConfig    `json:"search" yaml:"search" mapstructure:"search"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	Index     IndexConfig     `json:"index" yaml:"index" mapstructure:"index"`
	LLM       LLMConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Keepalive KeepaliveConfig `json:"keepalive" yaml:"keepalive" mapstructure:"keepalive"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:    15 * time.Second,
				UserAgent:  "reality-check/0.1",
				MaxRetries: 2,
			},
			MaxResults: 25,
		},
		Cache: CacheConfig{
			Addr:      "localhost:6379",
			TTL:       time.Hour,
			OpTimeout: 2 * time.Second,
		},
		Index: IndexConfig{
			Backend:    IndexNone,
			Addresses:  []string{"http://localhost:9200"},
			Path:       "index/reality-check.db",
			Size:       10,
			Dimensions: 768,
		},
		LLM: LLMConfig{
			Models: []ModelCandidate{
				{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
				{Provider: ProviderOpenAI, Model: "gpt-4o"},
				{Provider: ProviderAnthropic, Model: "claude-3-5-haiku-latest"},
			},
			Timeout: 60 * time.Second,
		},
		Pipeline: PipelineConfig{
			SearchSize:     25,
			AnalyzeTopN:    10,
			GenerateTopN:   15,
			HistoryWindow:  6,
			MaxMessages:    100,
			SessionIdleTTL: 2 * time.Hour,
		},
		Server: ServerConfig{
			Addr:           ":3001",
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			RateLimit:      100,
			RateWindow:     15 * time.Minute,
		},
		Keepalive: KeepaliveConfig{
			BaseURL:  "http://localhost:3001",
			Schedule: "*/5 * * * *",
		},
	}
}

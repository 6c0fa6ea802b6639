package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reality-check/internal/secrets"
	"github.com/pdiddy/reality-check/pkg/types"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("REALITY_CHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newViper(t), secrets.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reality-check.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  addr: redis:6379
  ttl: 30m
index:
  backend: sqlite
  path: /tmp/idx.db
llm:
  models:
    - provider: anthropic
      model: claude-3-5-haiku-latest
server:
  allowed_origins: ["https://rc.example.com"]
`), 0o644))

	t.Setenv("REALITY_CHECK_SERVER_ADDR", ":8080")
	t.Setenv("REALITY_CHECK_PIPELINE_SEARCH_SIZE", "12")

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v, secrets.Secrets{})
	require.NoError(t, err)

	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Second, cfg.Cache.OpTimeout)
	assert.Equal(t, types.IndexSQLite, cfg.Index.Backend)
	assert.Equal(t, "/tmp/idx.db", cfg.Index.Path)
	assert.Equal(t, []types.ModelCandidate{{Provider: types.ProviderAnthropic, Model: "claude-3-5-haiku-latest"}}, cfg.LLM.Models)
	assert.Equal(t, []string{"https://rc.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 12, cfg.Pipeline.SearchSize)
	assert.Equal(t, 10, cfg.Pipeline.AnalyzeTopN)
}

func TestApplySecrets(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.LLM.OpenAIAPIKey = "from-config"

	applySecrets(&cfg, secrets.Secrets{
		secrets.NewsAPIKey:         "news",
		secrets.GoogleSearchAPIKey: "google",
		secrets.GoogleSearchEngine: "cx",
		secrets.OpenAIAPIKey:       "from-secrets",
		secrets.AnthropicAPIKey:    "anthropic",
		secrets.RedisPassword:      "pw",
		secrets.APIKeys:            "k1, k2,",
	})

	assert.Equal(t, "news", cfg.Search.NewsAPIKey)
	assert.Equal(t, "google", cfg.Search.GoogleAPIKey)
	assert.Equal(t, "cx", cfg.Search.GoogleEngineID)
	assert.Equal(t, "from-config", cfg.LLM.OpenAIAPIKey, "explicit config wins")
	assert.Equal(t, "anthropic", cfg.LLM.AnthropicAPIKey)
	assert.Equal(t, "pw", cfg.Cache.Password)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		l, err := newLogger("debug", format)
		require.NoError(t, err, format)
		require.NotNil(t, l)
	}
	_, err := newLogger("loud", "json")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestTopSources(t *testing.T) {
	got := topSources(map[string]int{"Reuters": 3, "BBC News": 5, "NPR": 3, "AP": 1}, 3)
	assert.Equal(t, "BBC News (5), NPR (3), Reuters (3)", got)
	assert.Equal(t, "", topSources(nil, 3))
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, types.Answer{
		Message: "No credible link was found.",
		Metadata: types.AnswerMetadata{
			SearchStats: types.SearchStats{TotalSources: 9, SourcesAnalyzed: 7, CredibilityScore: 0.9, ConfidenceLevel: types.ConfidenceHigh},
			Sources: []types.SourceSummary{
				{Title: "Vaccine safety", Source: "cdc.gov", URL: "https://cdc.gov/v", CredibilityScore: 0.95},
			},
			FollowUpQuestions: []string{"What do studies show?"},
			FromCache:         true,
			CacheAgeMillis:    4200,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "No credible link was found.")
	assert.Contains(t, out, "9 found, 7 analyzed. Credibility 0.90 (high confidence), cached 4s ago")
	assert.Contains(t, out, "1. Vaccine safety (cdc.gov, 0.95)")
	assert.Contains(t, out, "- What do studies show?")
}

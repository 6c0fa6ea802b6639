// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Well-known secret file names.
const (
	NewsAPIKey          = "newsapi-api-key"
	GoogleSearchAPIKey  = "google-search-api-key"
	GoogleSearchEngine  = "google-search-engine-id"
	OpenAIAPIKey        = "openai-api-key"
	AnthropicAPIKey     = "anthropic-api-key"
	ElasticsearchAPIKey = "elasticsearch-api-key"
	RedisPassword       = "redis-password"

	// APIKeys holds comma-separated keys accepted by the HTTP API.
	APIKeys = "api-keys"
)

// Secrets maps secret names to values.
type Secrets map[string]string

// Or returns fallback when it is non-empty, the stored secret otherwise.
// Explicit configuration always wins over the secrets directory.
func (s Secrets) Or(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return s[key]
}

// List splits a comma-separated secret into trimmed, non-empty parts.
func (s Secrets) List(key string) []string {
	var out []string
	for _, part := range strings.Split(s[key], ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

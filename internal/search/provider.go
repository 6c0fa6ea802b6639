// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// Provider returns normalized results for a query. A provider never fails
// the caller: transport errors, bad statuses, malformed payloads and
// missing credentials all produce an empty slice and a log line.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string, limit int) []types.SearchResult
}

// Observer receives one outcome per provider call.
type Observer interface {
	ObserveProvider(provider string, results int, elapsed time.Duration, failed bool)
}

// ErrNotConfigured is returned by a provider client that lacks credentials.
var ErrNotConfigured = errors.New("provider not configured")

// Provider names, also used as metric labels.
const (
	NameNews      = "news"
	NameWeb       = "web"
	NameFactCheck = "fact_check"
	NameAuthority = "authority"
)

// Default per-provider limits.
const (
	NewsLimit      = 15
	WebLimit       = 15
	FactCheckLimit = 10
	AuthorityLimit = 10
)

// searchFunc is the error-returning half of a provider.
type searchFunc func(ctx context.Context, query string, limit int) ([]types.SearchResult, error)

// failOpen adapts a searchFunc into a Provider that swallows every failure.
type failOpen struct {
	name     string
	search   searchFunc
	logger   *zap.Logger
	observer Observer
}

func newFailOpen(name string, fn searchFunc, logger *zap.Logger, observer Observer) *failOpen {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &failOpen{
		name:     name,
		search:   fn,
		logger:   logger.With(zap.String("provider", name)),
		observer: observer,
	}
}

// Name returns the provider identifier.
func (p *failOpen) Name() string { return p.name }

// Fetch runs the underlying search and returns an empty slice on any failure.
func (p *failOpen) Fetch(ctx context.Context, query string, limit int) (results []types.SearchResult) {
	start := time.Now()
	failed := false
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("provider panicked", zap.Any("panic", r))
			results, failed = []types.SearchResult{}, true
		}
		if p.observer != nil {
			p.observer.ObserveProvider(p.name, len(results), time.Since(start), failed)
		}
	}()

	res, err := p.search(ctx, query, limit)
	switch {
	case errors.Is(err, ErrNotConfigured):
		p.logger.Debug("provider skipped", zap.Error(err))
		return []types.SearchResult{}
	case err != nil:
		failed = true
		p.logger.Warn("provider failed", zap.String("query", query), zap.Error(err))
		return []types.SearchResult{}
	}
	if res == nil {
		res = []types.SearchResult{}
	}
	p.logger.Debug("provider returned", zap.Int("results", len(res)))
	return res
}

// Providers is the fixed provider set the aggregator fans out to.
type Providers struct {
	News      Provider
	Web       Provider
	FactCheck Provider
	Authority Provider
}

// NewProviders builds the four providers from cfg. Providers whose
// credentials are missing stay in the set and return nothing.
func NewProviders(cfg types.SearchConfig, client *http.Client, logger *zap.Logger, observer Observer) Providers {
	news := &NewsClient{
		Client:     client,
		APIKey:     cfg.NewsAPIKey,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	}
	web := &WebClient{
		Client:     client,
		APIKey:     cfg.GoogleAPIKey,
		EngineID:   cfg.GoogleEngineID,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	}
	return Providers{
		News:      newFailOpen(NameNews, news.Search, logger, observer),
		Web:       newFailOpen(NameWeb, web.Search, logger, observer),
		FactCheck: newFailOpen(NameFactCheck, web.FactCheck, logger, observer),
		Authority: newFailOpen(NameAuthority, web.Authority, logger, observer),
	}
}

// ProviderFunc wraps fn as a fail-open Provider. Tests and alternate
// backends use it to plug into the aggregator.
func ProviderFunc(name string, fn func(ctx context.Context, query string, limit int) ([]types.SearchResult, error), logger *zap.Logger) Provider {
	return newFailOpen(name, fn, logger, nil)
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		limit = fallback
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/analysis"
	"github.com/pdiddy/reality-check/internal/cache"
	"github.com/pdiddy/reality-check/internal/httputil"
	"github.com/pdiddy/reality-check/internal/index"
	"github.com/pdiddy/reality-check/internal/llm"
	"github.com/pdiddy/reality-check/internal/metrics"
	"github.com/pdiddy/reality-check/internal/pipeline"
	"github.com/pdiddy/reality-check/internal/search"
	"github.com/pdiddy/reality-check/pkg/types"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     types.Config
	logger  *zap.Logger
	metrics *metrics.Collector

	cache    *cache.Store // nil when disabled
	index    index.Store  // nil when disabled
	chain    *llm.Chain
	embedder llm.Embedder
	analyzer *analysis.Analyzer
	search   *search.Aggregator
	sessions pipeline.SessionStore
	orch     *pipeline.Orchestrator
}

// appOptions selects the optional parts a command needs.
type appOptions struct {
	// redisSessions stores conversations in Redis when the cache is up.
	redisSessions bool
	// noCache skips the cache even when it is configured.
	noCache bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(logger),
	}

	client := httputil.NewClient(cfg.Search.HTTPConfig)
	a.search = search.NewAggregator(search.NewProviders(cfg.Search, client, logger, a.metrics), logger)

	a.chain, a.embedder = llm.New(cfg.LLM, logger)
	a.analyzer = analysis.New(a.chain, logger)

	if !cfg.Cache.Disabled && !opts.noCache {
		a.cache = cache.New(cfg.Cache, logger)
		a.cache.SetObserver(a.metrics)
	}

	idx, err := index.Open(ctx, cfg.Index, logger)
	switch {
	case errors.Is(err, index.ErrDisabled):
	case err != nil:
		logger.Warn("secondary index unavailable, continuing without it", zap.Error(err))
	default:
		a.index = idx
	}

	a.sessions = pipeline.NewMemoryStore()
	if opts.redisSessions && a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, keeping conversations in memory", zap.Error(err))
		} else {
			a.sessions = pipeline.NewRedisStore(a.cache.Client(), cfg.Pipeline.SessionIdleTTL, logger)
		}
	}

	a.orch = &pipeline.Orchestrator{
		Search:   a.search,
		Analyst:  a.analyzer,
		Sessions: a.sessions,
		Config:   cfg.Pipeline,
		Logger:   logger,
		Observer: a.metrics,
	}
	// Interface fields are only set from non-nil values.
	if a.cache != nil {
		a.orch.Cache = a.cache
	}
	if a.index != nil {
		a.orch.Index = a.index
	}
	if a.embedder != nil {
		a.orch.Embedder = a.embedder
	}
	return a, nil
}

// requireCache returns the cache store or an error when it is disabled.
func (a *app) requireCache() (*cache.Store, error) {
	if a.cache == nil {
		return nil, errors.New("cache is disabled in the configuration")
	}
	return a.cache, nil
}

// requireIndex returns the secondary index or an error when none is configured.
func (a *app) requireIndex() (index.Store, error) {
	if a.index == nil {
		return nil, fmt.Errorf("no secondary index: set index.backend to %q or %q",
			types.IndexElasticsearch, types.IndexSQLite)
	}
	return a.index, nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Debug("closing cache", zap.Error(err))
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Debug("closing index", zap.Error(err))
		}
	}
}

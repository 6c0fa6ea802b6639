// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a question out to the news, web, fact-check and
// authority providers and returns one deduplicated, credibility-ranked
// aggregate. An optional secondary index can be merged into the aggregate.
package search

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/reality-check/pkg/types"
)

// DefaultSize is the aggregate size after ranking.
const DefaultSize = 25

// Limits holds the per-provider result caps.
type Limits struct {
	News      int
	Web       int
	FactCheck int
	Authority int
}

// DefaultLimits returns the standard per-provider caps.
func DefaultLimits() Limits {
	return Limits{
		News:      NewsLimit,
		Web:       WebLimit,
		FactCheck: FactCheckLimit,
		Authority: AuthorityLimit,
	}
}

// Aggregator queries every provider concurrently and merges the results.
// It never reads or writes the cache.
type Aggregator struct {
	Providers Providers
	Limits    Limits
	Logger    *zap.Logger
}

// NewAggregator returns an Aggregator with the default limits.
func NewAggregator(p Providers, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		Providers: p,
		Limits:    DefaultLimits(),
		Logger:    logger.With(zap.String("component", "aggregator")),
	}
}

// Aggregate runs all providers, waits for every one of them, and returns
// the top size results. A provider that fails contributes nothing.
func (a *Aggregator) Aggregate(ctx context.Context, query string, size int) types.AggregateResult {
	start := time.Now()
	logger := a.logger()

	slots := []struct {
		provider Provider
		limit    int
	}{
		{a.Providers.News, a.Limits.News},
		{a.Providers.Web, a.Limits.Web},
		{a.Providers.FactCheck, a.Limits.FactCheck},
		{a.Providers.Authority, a.Limits.Authority},
	}
	out := make([][]types.SearchResult, len(slots))

	var g errgroup.Group
	for i, s := range slots {
		if s.provider == nil {
			continue
		}
		g.Go(func() error {
			out[i] = s.provider.Fetch(ctx, query, s.limit)
			return nil
		})
	}
	_ = g.Wait()

	var all []types.SearchResult
	counts := make(map[types.ResultType]int)
	for _, results := range out {
		for _, r := range results {
			counts[r.Type]++
		}
		all = append(all, results...)
	}

	res := types.AggregateResult{
		Results:      Rank(all, size),
		Total:        len(all),
		SourceCounts: counts,
	}
	logger.Info("aggregated",
		zap.String("query", query),
		zap.Int("total", res.Total),
		zap.Int("kept", len(res.Results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

func (a *Aggregator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// Rank deduplicates results, orders them by credibility and type priority,
// keeps the first size, and assigns rank-based scores (N-i)/N.
func Rank(results []types.SearchResult, size int) []types.SearchResult {
	if size <= 0 {
		size = DefaultSize
	}
	ranked := Dedup(results)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CredibilityScore != ranked[j].CredibilityScore {
			return ranked[i].CredibilityScore > ranked[j].CredibilityScore
		}
		return ranked[i].Type.Priority() > ranked[j].Type.Priority()
	})

	if len(ranked) > size {
		ranked = ranked[:size]
	}
	n := float64(len(ranked))
	for i := range ranked {
		ranked[i].Score = (n - float64(i)) / n
	}
	return ranked
}

// Dedup drops every result whose title and source match an earlier one.
// The first occurrence wins. Matching is exact and case-sensitive, so two
// publishers running the same headline are both kept.
func Dedup(results []types.SearchResult) []types.SearchResult {
	seen := make(map[string]bool, len(results))
	deduped := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		key := dedupKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, r)
	}
	return deduped
}

func dedupKey(r types.SearchResult) string {
	return r.Title + "-" + r.Source
}

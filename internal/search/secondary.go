// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// Index is a secondary store that answers hybrid keyword and vector
// queries. It returns the hits and the store's own total hit count.
type Index interface {
	HybridSearch(ctx context.Context, query string, embedding []float32, size int) ([]types.SearchResult, int, error)
}

// DefaultIndexSize is how many hits are requested from a secondary index.
const DefaultIndexSize = 10

// MergeIndex folds secondary index hits into agg. Aggregator results come
// first, index hits second, and the union is ranked again. The aggregate
// is returned unchanged when there is no index or no embedding, or when
// the index call fails.
func MergeIndex(ctx context.Context, agg types.AggregateResult, idx Index, query string, embedding []float32, size int, logger *zap.Logger) types.AggregateResult {
	if idx == nil || len(embedding) == 0 {
		return agg
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hits, _, err := idx.HybridSearch(ctx, query, embedding, DefaultIndexSize)
	if err != nil {
		logger.Warn("secondary index search failed, using provider results only", zap.Error(err))
		return agg
	}
	if len(hits) == 0 {
		return agg
	}

	union := make([]types.SearchResult, 0, len(agg.Results)+len(hits))
	union = append(union, agg.Results...)
	union = append(union, hits...)

	counts := make(map[types.ResultType]int, len(agg.SourceCounts))
	for k, v := range agg.SourceCounts {
		counts[k] = v
	}
	for _, h := range hits {
		counts[h.Type]++
	}

	merged := agg
	merged.Results = Rank(union, size)
	merged.Total = agg.Total + len(hits)
	merged.SourceCounts = counts
	logger.Debug("merged secondary index hits", zap.Int("hits", len(hits)), zap.Int("kept", len(merged.Results)))
	return merged
}

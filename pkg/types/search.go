// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the reality-check pipeline:
// normalized search hits, aggregation output, analysis results, conversation
// state, and per-component configuration.
package types

import "time"

// ResultType identifies which kind of provider produced a SearchResult.
type ResultType string

const (
	ResultNews       ResultType = "news"
	ResultWeb        ResultType = "web"
	ResultFactCheck  ResultType = "factCheck"
	ResultGovernment ResultType = "government"
)

// Priority returns the tie-break rank used when two results share a
// credibility score. Higher ranks sort first.
func (t ResultType) Priority() int {
	switch t {
	case ResultGovernment:
		return 4
	case ResultFactCheck:
		return 3
	case ResultNews:
		return 2
	case ResultWeb:
		return 1
	default:
		return 0
	}
}

// Highlights holds the snippets a provider considered relevant.
type Highlights struct {
	Title   []string `json:"title" yaml:"title"`
	Content []string `json:"content" yaml:"content"`
}

// SearchResult is one normalized hit from any provider. Provider payloads
// are mapped into this shape at the provider boundary and never passed
// further downstream.
type SearchResult struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`

	// Source is the publisher or domain name (e.g. "Reuters", "cdc.gov").
	Source string `json:"source" yaml:"source"`

	URL         string    `json:"url" yaml:"url"`
	PublishDate time.Time `json:"publishDate" yaml:"publish_date"`

	// CredibilityScore is a static heuristic in [0,1]. Providers always set it.
	CredibilityScore float64 `json:"credibilityScore" yaml:"credibility_score"`

	Type       ResultType `json:"type" yaml:"type"`
	Highlights Highlights `json:"highlights" yaml:"highlights"`

	// Score is the rank-based relevance assigned by the aggregator.
	Score float64 `json:"score" yaml:"score"`

	// Verdict and FactChecker are only set on fact-check results.
	Verdict     string `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	FactChecker string `json:"factChecker,omitempty" yaml:"fact_checker,omitempty"`
}

// AggregateResult is the output of one aggregate pass.
//
// Total is the raw number of hits returned by all sources before
// deduplication. len(Results) is the deduplicated, truncated count.
type AggregateResult struct {
	Results      []SearchResult     `json:"results" yaml:"results"`
	Total        int                `json:"total" yaml:"total"`
	SourceCounts map[ResultType]int `json:"sourceCounts" yaml:"source_counts"`

	// FromCache and CacheAgeMillis are only set by the cache adapter.
	FromCache      bool  `json:"fromCache" yaml:"from_cache"`
	CacheAgeMillis int64 `json:"cacheAgeMillis" yaml:"cache_age_millis"`
}

// Top returns at most n leading results.
func (a AggregateResult) Top(n int) []SearchResult {
	if n < 0 || n >= len(a.Results) {
		return a.Results
	}
	return a.Results[:n]
}

// CacheEntry is the serialized form of a cached AggregateResult.
type CacheEntry struct {
	Result         AggregateResult `json:"result"`
	CachedAtMillis int64           `json:"cachedAtMillis"`
	Query          string          `json:"query"`
}

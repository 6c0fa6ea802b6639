// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index provides the secondary stores searched alongside the live
// providers: an Elasticsearch cluster or a local SQLite file. Both answer
// hybrid keyword and vector queries and accept curated documents loaded
// from YAML.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reality-check/internal/search"
	"github.com/pdiddy/reality-check/pkg/types"
)

// Kind is the collection a document belongs to.
type Kind string

const (
	KindNews       Kind = "news"
	KindStudies    Kind = "studies"
	KindFactChecks Kind = "fact_checks"
	KindGovernment Kind = "government"
	KindSocial     Kind = "social"
)

// Kinds lists every collection in a fixed order.
var Kinds = []Kind{KindNews, KindStudies, KindFactChecks, KindGovernment, KindSocial}

// Valid reports whether k is a known collection.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// ResultType maps the collection onto the result type the ranker knows.
func (k Kind) ResultType() types.ResultType {
	switch k {
	case KindNews:
		return types.ResultNews
	case KindFactChecks:
		return types.ResultFactCheck
	case KindGovernment:
		return types.ResultGovernment
	default:
		return types.ResultWeb
	}
}

// Document is one curated source stored in an index.
type Document struct {
	Kind             Kind      `json:"-" yaml:"kind"`
	Title            string    `json:"title" yaml:"title"`
	Content          string    `json:"content" yaml:"content"`
	URL              string    `json:"url" yaml:"url"`
	Source           string    `json:"source" yaml:"source"`
	PublishDate      time.Time `json:"publishDate" yaml:"publish_date"`
	CredibilityScore float64   `json:"credibilityScore" yaml:"credibility_score"`
	Tags             []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Claim            string    `json:"claim,omitempty" yaml:"claim,omitempty"`
	Verdict          string    `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	FactChecker      string    `json:"factchecker,omitempty" yaml:"factchecker,omitempty"`
	Embedding        []float32 `json:"embeddings,omitempty" yaml:"embedding,omitempty"`
}

// Result converts the document to a search result.
func (d Document) Result() types.SearchResult {
	return types.SearchResult{
		Title:            d.Title,
		Content:          d.Content,
		Source:           d.Source,
		URL:              d.URL,
		PublishDate:      d.PublishDate,
		CredibilityScore: d.CredibilityScore,
		Type:             d.Kind.ResultType(),
		Verdict:          d.Verdict,
		FactChecker:      d.FactChecker,
	}
}

// KindStats summarizes one collection.
type KindStats struct {
	Kind           Kind           `json:"kind" yaml:"kind"`
	Total          int            `json:"total" yaml:"total"`
	Sources        map[string]int `json:"sources" yaml:"sources"`
	AvgCredibility float64        `json:"avgCredibility" yaml:"avg_credibility"`
}

// Store is a secondary index.
type Store interface {
	search.Index

	// Index writes docs and returns how many were stored.
	Index(ctx context.Context, docs []Document) (int, error)
	SourceStats(ctx context.Context) ([]KindStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrDisabled is returned by Open when no backend is configured.
var ErrDisabled = errors.New("secondary index disabled")

// Open connects to the configured backend. The Elasticsearch indexes are
// created if missing.
func Open(ctx context.Context, cfg types.IndexConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case types.IndexElasticsearch:
		es, err := NewElastic(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := es.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return es, nil
	case types.IndexSQLite:
		return NewSQLite(cfg, logger)
	case types.IndexNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// documentFile is the YAML layout accepted by LoadDocuments.
type documentFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadDocuments reads documents from a YAML file. Documents without a
// kind are stored as news.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i := range f.Documents {
		d := &f.Documents[i]
		if d.Kind == "" {
			d.Kind = KindNews
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("document %d (%q): unknown kind %q", i, d.Title, d.Kind)
		}
		if d.Title == "" {
			return nil, fmt.Errorf("document %d: title is required", i)
		}
	}
	return f.Documents, nil
}

// cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or either is zero.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

const (
	indexPrefix       = "reality_check_"
	defaultDimensions = 768
	statsSourceBucket = 50
)

// IndexName returns the Elasticsearch index holding kind.
func IndexName(k Kind) string { return indexPrefix + string(k) }

// Elastic is a Store backed by an Elasticsearch cluster.
type Elastic struct {
	es         *elasticsearch.Client
	dimensions int
	logger     *zap.Logger
}

// NewElastic builds the client. An API key takes precedence over basic
// auth; with neither the cluster is contacted anonymously.
func NewElastic(cfg types.IndexConfig, logger *zap.Logger) (*Elastic, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	esCfg := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultDimensions
	}
	return &Elastic{
		es:         es,
		dimensions: dims,
		logger:     logger.With(zap.String("component", "elasticsearch")),
	}, nil
}

// Ping checks that the cluster answers.
func (e *Elastic) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("pinging elasticsearch: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the client holds no resources beyond its transport.
func (e *Elastic) Close() error { return nil }

// EnsureIndexes creates every missing collection index with its mapping.
// A failure on one index is logged and the rest are still attempted.
func (e *Elastic) EnsureIndexes(ctx context.Context) error {
	var failed []string
	for _, k := range Kinds {
		name := IndexName(k)
		res, err := e.es.Indices.Exists([]string{name}, e.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("checking index %s: %w", name, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		body, err := json.Marshal(e.mapping(k))
		if err != nil {
			return fmt.Errorf("encoding mapping for %s: %w", name, err)
		}
		res, err = e.es.Indices.Create(name,
			e.es.Indices.Create.WithContext(ctx),
			e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return fmt.Errorf("creating index %s: %w", name, err)
		}
		if res.IsError() {
			e.logger.Error("creating index failed", zap.String("index", name), zap.String("status", res.Status()))
			failed = append(failed, name)
		} else {
			e.logger.Info("created index", zap.String("index", name))
		}
		res.Body.Close()
	}
	if len(failed) > 0 {
		return fmt.Errorf("creating indexes: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (e *Elastic) mapping(k Kind) map[string]any {
	props := map[string]any{
		"title":            map[string]any{"type": "text", "analyzer": "standard"},
		"content":          map[string]any{"type": "text", "analyzer": "standard"},
		"url":              map[string]any{"type": "keyword"},
		"source":           map[string]any{"type": "keyword"},
		"publishDate":      map[string]any{"type": "date"},
		"credibilityScore": map[string]any{"type": "float"},
		"tags":             map[string]any{"type": "keyword"},
		"embeddings":       map[string]any{"type": "dense_vector", "dims": e.dimensions},
	}
	switch k {
	case KindNews:
		props["outlet"] = map[string]any{"type": "keyword"}
		props["bias_rating"] = map[string]any{"type": "keyword"}
	case KindStudies:
		props["journal"] = map[string]any{"type": "keyword"}
		props["doi"] = map[string]any{"type": "keyword"}
		props["peer_reviewed"] = map[string]any{"type": "boolean"}
	case KindFactChecks:
		props["claim"] = map[string]any{"type": "text"}
		props["verdict"] = map[string]any{"type": "keyword"}
		props["factchecker"] = map[string]any{"type": "keyword"}
	}
	return map[string]any{
		"mappings": map[string]any{"properties": props},
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}
}

// HybridSearch runs a fuzzy keyword query across every collection, adding
// a cosine similarity clause when the embedding matches the mapping.
func (e *Elastic) HybridSearch(ctx context.Context, query string, embedding []float32, size int) ([]types.SearchResult, int, error) {
	body, err := json.Marshal(e.hybridQuery(query, embedding, size))
	if err != nil {
		return nil, 0, fmt.Errorf("encoding query: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(indexNames()...),
		e.es.Search.WithBody(bytes.NewReader(body)),
		e.es.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("searching elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, responseError("searching elasticsearch", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("decoding search response: %w", err)
	}

	out := make([]types.SearchResult, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		h.Source.Kind = kindOf(h.Index)
		r := h.Source.Result()
		r.Highlights = types.Highlights{Title: h.Highlight.Title, Content: h.Highlight.Content}
		out = append(out, r)
	}
	return out, sr.Hits.Total.Value, nil
}

func (e *Elastic) hybridQuery(query string, embedding []float32, size int) map[string]any {
	if size <= 0 {
		size = 10
	}
	should := []any{
		map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "content", "claim^1.5"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		},
	}
	if len(embedding) == e.dimensions {
		should = append(should, map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": "cosineSimilarity(params.query_vector, 'embeddings') + 1.0",
					"params": map[string]any{"query_vector": embedding},
				},
			},
		})
	} else if len(embedding) > 0 {
		e.logger.Debug("embedding size does not match mapping, keyword search only",
			zap.Int("got", len(embedding)), zap.Int("want", e.dimensions))
	}

	return map[string]any{
		"size":  size,
		"query": map[string]any{"bool": map[string]any{"should": should}},
		"sort": []any{
			map[string]any{"credibilityScore": map[string]any{"order": "desc"}},
			map[string]any{"publishDate": map[string]any{"order": "desc"}},
			"_score",
		},
		"highlight": map[string]any{
			"fields": map[string]any{
				"title":   map[string]any{},
				"content": map[string]any{"fragment_size": 150, "number_of_fragments": 3},
			},
		},
	}
}

// Index bulk-writes docs with refresh and returns how many were accepted.
// Per-item failures are logged; only a transport or request failure is an
// error.
func (e *Elastic) Index(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		if err := enc.Encode(map[string]any{"index": map[string]any{"_index": IndexName(d.Kind)}}); err != nil {
			return 0, fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(d); err != nil {
			return 0, fmt.Errorf("encoding document %q: %w", d.Title, err)
		}
	}

	res, err := e.es.Bulk(bytes.NewReader(buf.Bytes()),
		e.es.Bulk.WithContext(ctx),
		e.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, responseError("bulk indexing", res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("decoding bulk response: %w", err)
	}
	indexed := 0
	for _, item := range br.Items {
		for _, op := range item {
			if op.Error != nil {
				e.logger.Warn("document not indexed",
					zap.String("index", op.Index),
					zap.String("reason", op.Error.Reason))
				continue
			}
			indexed++
		}
	}
	return indexed, nil
}

// SourceStats returns per-collection document counts, the top sources and
// the average credibility.
func (e *Elastic) SourceStats(ctx context.Context) ([]KindStats, error) {
	body, err := json.Marshal(map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"sources":         map[string]any{"terms": map[string]any{"field": "source", "size": statsSourceBucket}},
			"credibility_avg": map[string]any{"avg": map[string]any{"field": "credibilityScore"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding stats query: %w", err)
	}

	stats := make([]KindStats, 0, len(Kinds))
	for _, k := range Kinds {
		res, err := e.es.Search(
			e.es.Search.WithContext(ctx),
			e.es.Search.WithIndex(IndexName(k)),
			e.es.Search.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", k, err)
		}
		var sr statsResponse
		if res.IsError() {
			err = responseError("stats for "+string(k), res)
		} else {
			err = json.NewDecoder(res.Body).Decode(&sr)
		}
		res.Body.Close()
		if err != nil {
			return nil, err
		}

		ks := KindStats{Kind: k, Total: sr.Hits.Total.Value, Sources: map[string]int{}}
		for _, b := range sr.Aggregations.Sources.Buckets {
			ks.Sources[b.Key] = b.DocCount
		}
		if sr.Aggregations.CredibilityAvg.Value != nil {
			ks.AvgCredibility = *sr.Aggregations.CredibilityAvg.Value
		}
		stats = append(stats, ks)
	}
	return stats, nil
}

func indexNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = IndexName(k)
	}
	return names
}

func kindOf(index string) Kind {
	k := Kind(strings.TrimPrefix(index, indexPrefix))
	if !k.Valid() {
		return KindNews
	}
	return k
}

func responseError(op string, res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("%s: %s: %s", op, res.Status(), strings.TrimSpace(string(msg)))
}

// --- wire types ---

type totalHits struct {
	Value int `json:"value"`
}

type searchResponse struct {
	Hits struct {
		Total totalHits `json:"total"`
		Hits  []struct {
			Index     string   `json:"_index"`
			Source    Document `json:"_source"`
			Highlight struct {
				Title   []string `json:"title"`
				Content []string `json:"content"`
			} `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Index  string `json:"_index"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type statsResponse struct {
	Hits struct {
		Total totalHits `json:"total"`
	} `json:"hits"`
	Aggregations struct {
		Sources struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"sources"`
		CredibilityAvg struct {
			Value *float64 `json:"value"`
		} `json:"credibility_avg"`
	} `json:"aggregations"`
}

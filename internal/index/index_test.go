package index

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reality-check/pkg/types"
)

// --- shared helpers ---

func sampleDocuments() []Document {
	return []Document{
		{
			Kind:             KindFactChecks,
			Title:            "Do electric cars create more pollution than gas cars?",
			Content:          "Studies show that EVs typically produce 50-70% fewer emissions than gasoline cars over their lifetime.",
			Claim:            "Electric cars are worse for the environment than gas cars",
			Verdict:          "mostly-false",
			FactChecker:      "Climate Fact Check",
			URL:              "https://example.com/ev-climate-facts",
			Source:           "Climate Fact Check",
			PublishDate:      time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC),
			CredibilityScore: 0.89,
			Tags:             []string{"climate", "electric-vehicles"},
			Embedding:        []float32{1, 0, 0},
		},
		{
			Kind:             KindNews,
			Title:            "Electric Vehicle Adoption Accelerating",
			Content:          "Global electric vehicle sales increased by 40% year-over-year.",
			URL:              "https://example.com/ev-adoption-study",
			Source:           "Reuters",
			PublishDate:      time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC),
			CredibilityScore: 0.92,
			Embedding:        []float32{0.9, 0.1, 0},
		},
		{
			Kind:             KindStudies,
			Title:            "Curcumin Bioavailability: A Systematic Review",
			Content:          "Evidence for cancer treatment remains limited to in-vitro and animal studies.",
			URL:              "https://example.com/curcumin",
			Source:           "Journal of Clinical Medicine",
			PublishDate:      time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
			CredibilityScore: 0.96,
			Embedding:        []float32{0, 0, 1},
		},
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindResultType(t *testing.T) {
	tests := []struct {
		kind Kind
		want types.ResultType
	}{
		{KindNews, types.ResultNews},
		{KindFactChecks, types.ResultFactCheck},
		{KindGovernment, types.ResultGovernment},
		{KindStudies, types.ResultWeb},
		{KindSocial, types.ResultWeb},
	}
	for _, tt := range tests {
		if got := tt.kind.ResultType(); got != tt.want {
			t.Errorf("%s.ResultType() = %s, want %s", tt.kind, got, tt.want)
		}
	}
	assert.False(t, Kind("blogs").Valid())
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`documents:
  - kind: fact_checks
    title: Turmeric cures cancer
    claim: Turmeric supplements can cure cancer
    verdict: "false"
    source: Medical Facts Review
    credibility_score: 0.91
    publish_date: 2024-09-10T00:00:00Z
  - title: Untyped news item
    source: AP
`), 0o644))

	docs, err := LoadDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, KindFactChecks, docs[0].Kind)
	assert.Equal(t, "false", docs[0].Verdict)
	assert.Equal(t, 0.91, docs[0].CredibilityScore)
	assert.Equal(t, 2024, docs[0].PublishDate.Year())
	assert.Equal(t, KindNews, docs[1].Kind)
}

func TestLoadDocumentsErrors(t *testing.T) {
	tests := []struct {
		name, body string
	}{
		{"unknown kind", "documents:\n  - kind: blogs\n    title: x\n"},
		{"missing title", "documents:\n  - kind: news\n"},
		{"not yaml", "documents: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "docs.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := LoadDocuments(path)
			assert.Error(t, err)
		})
	}
	_, err := LoadDocuments(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenDisabled(t *testing.T) {
	_, err := Open(context.Background(), types.IndexConfig{Backend: types.IndexNone}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = Open(context.Background(), types.IndexConfig{Backend: "solr"}, nil)
	assert.Error(t, err)
}

// --- SQLite ---

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(types.IndexConfig{Path: filepath.Join(t.TempDir(), "index", "test.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	n, err := s.Index(context.Background(), sampleDocuments())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return s
}

func TestSQLiteKeywordSearch(t *testing.T) {
	s := openSQLite(t)

	got, total, err := s.HybridSearch(context.Background(), "electric pollution", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	// Higher credibility first.
	assert.Equal(t, "Reuters", got[0].Source)
	assert.Equal(t, types.ResultNews, got[0].Type)
	assert.Equal(t, types.ResultFactCheck, got[1].Type)
	assert.Equal(t, "mostly-false", got[1].Verdict)
	assert.Equal(t, []string{got[1].Title}, got[1].Highlights.Title)
	assert.Equal(t, time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC), got[1].PublishDate)
}

func TestSQLiteClaimMatch(t *testing.T) {
	s := openSQLite(t)
	got, _, err := s.HybridSearch(context.Background(), "WORSE Environment", nil, 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Climate Fact Check", got[0].Source)
}

func TestSQLiteVectorFallback(t *testing.T) {
	s := openSQLite(t)

	got, total, err := s.HybridSearch(context.Background(), "zzzz", []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "only the similar document survives")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Title, "Curcumin")

	got, total, err = s.HybridSearch(context.Background(), "zzzz", nil, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)
}

func TestSQLiteSizeAndUpsert(t *testing.T) {
	s := openSQLite(t)

	docs := sampleDocuments()
	docs[1].CredibilityScore = 0.5
	n, err := s.Index(context.Background(), docs[1:2])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, total, err := s.HybridSearch(context.Background(), "electric", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 1)
	assert.Equal(t, "Climate Fact Check", got[0].Source, "upsert lowered the news credibility")
}

func TestSQLiteSourceStats(t *testing.T) {
	s := openSQLite(t)
	stats, err := s.SourceStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, len(Kinds))

	byKind := map[Kind]KindStats{}
	for _, ks := range stats {
		byKind[ks.Kind] = ks
	}
	assert.Equal(t, 1, byKind[KindNews].Total)
	assert.Equal(t, map[string]int{"Reuters": 1}, byKind[KindNews].Sources)
	assert.InDelta(t, 0.92, byKind[KindNews].AvgCredibility, 1e-9)
	assert.Zero(t, byKind[KindSocial].Total)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestFragment(t *testing.T) {
	s := strings.Repeat("a", 100) + "needle" + strings.Repeat("é", 100)
	f := fragment(s, 100, 40)
	assert.Contains(t, f, "needle")
	assert.True(t, len(f) <= 42)
	assert.True(t, strings.HasPrefix(f, "a"))
	assert.NotContains(t, f, "�")
}

// --- Elasticsearch ---

type fakeCluster struct {
	mu       sync.Mutex
	existing map[string]bool
	created  map[string]map[string]any
	searches []map[string]any
	bulk     string
}

func newFakeCluster(t *testing.T) (*fakeCluster, *Elastic) {
	t.Helper()
	fc := &fakeCluster{existing: map[string]bool{}, created: map[string]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(fc.serve))
	t.Cleanup(srv.Close)

	e, err := NewElastic(types.IndexConfig{Addresses: []string{srv.URL}, Dimensions: 3}, nil)
	require.NoError(t, err)
	return fc, e
}

func (fc *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodHead && path == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if fc.existing[path] {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		fc.created[path] = m
		fc.existing[path] = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case path == "_bulk":
		fc.bulk = string(body)
		_, _ = w.Write([]byte(`{"errors":true,"items":[
			{"index":{"_index":"reality_check_fact_checks","status":201}},
			{"index":{"_index":"reality_check_news","status":201}},
			{"index":{"_index":"reality_check_studies","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad date"}}}
		]}`))
	case strings.HasSuffix(path, "/_search"):
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		fc.searches = append(fc.searches, m)
		if _, ok := m["aggs"]; ok {
			_, _ = w.Write([]byte(`{"hits":{"total":{"value":2}},"aggregations":{
				"sources":{"buckets":[{"key":"Reuters","doc_count":2}]},
				"credibility_avg":{"value":0.93}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":7},"hits":[
			{"_index":"reality_check_fact_checks","_score":2.1,
			 "_source":{"title":"EV pollution claim","content":"EVs produce fewer emissions.","url":"https://example.com/ev",
				"source":"Climate Fact Check","publishDate":"2024-09-15T00:00:00Z","credibilityScore":0.89,"verdict":"mostly-false"},
			 "highlight":{"title":["<em>EV</em> pollution claim"],"content":["<em>EVs</em> produce"]}},
			{"_index":"reality_check_government","_score":1.3,
			 "_source":{"title":"EPA on EVs","content":"Guidance.","source":"epa.gov","credibilityScore":0.95}}
		]}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unexpected request"}`))
	}
}

func TestElasticPing(t *testing.T) {
	_, e := newFakeCluster(t)
	assert.NoError(t, e.Ping(context.Background()))
}

func TestElasticEnsureIndexes(t *testing.T) {
	fc, e := newFakeCluster(t)
	fc.existing[IndexName(KindNews)] = true

	require.NoError(t, e.EnsureIndexes(context.Background()))
	assert.Len(t, fc.created, len(Kinds)-1)
	assert.NotContains(t, fc.created, "reality_check_news")

	mapping := fc.created["reality_check_fact_checks"]["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, mapping, "claim")
	vec := mapping["embeddings"].(map[string]any)
	assert.Equal(t, "dense_vector", vec["type"])
	assert.Equal(t, float64(3), vec["dims"])

	studies := fc.created["reality_check_studies"]["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, studies, "doi")
	assert.NotContains(t, studies, "claim")
}

func TestElasticHybridSearch(t *testing.T) {
	fc, e := newFakeCluster(t)

	got, total, err := e.HybridSearch(context.Background(), "EV pollution", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, got, 2)

	assert.Equal(t, types.ResultFactCheck, got[0].Type)
	assert.Equal(t, "mostly-false", got[0].Verdict)
	assert.Equal(t, []string{"<em>EV</em> pollution claim"}, got[0].Highlights.Title)
	assert.Equal(t, []string{"<em>EVs</em> produce"}, got[0].Highlights.Content)
	assert.Equal(t, 2024, got[0].PublishDate.Year())
	assert.Equal(t, types.ResultGovernment, got[1].Type)

	require.Len(t, fc.searches, 1)
	q := fc.searches[0]
	assert.Equal(t, float64(10), q["size"])
	should := q["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	require.Len(t, should, 2)
	mm := should[0].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "AUTO", mm["fuzziness"])
	assert.Equal(t, []any{"title^2", "content", "claim^1.5"}, mm["fields"])
	assert.Contains(t, should[1], "script_score")
	assert.Len(t, q["sort"], 3)
}

func TestElasticHybridSearchKeywordOnly(t *testing.T) {
	fc, e := newFakeCluster(t)
	_, _, err := e.HybridSearch(context.Background(), "EV", []float32{1, 0}, 5)
	require.NoError(t, err)
	should := fc.searches[0]["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Len(t, should, 1, "mismatched embedding size drops the vector clause")
}

func TestElasticBulkIndex(t *testing.T) {
	fc, e := newFakeCluster(t)
	n, err := e.Index(context.Background(), sampleDocuments())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(fc.bulk), "\n")
	require.Len(t, lines, 6)
	assert.JSONEq(t, `{"index":{"_index":"reality_check_fact_checks"}}`, lines[0])
	assert.Contains(t, lines[1], `"claim":"Electric cars are worse for the environment than gas cars"`)
	assert.Contains(t, lines[1], `"embeddings":[1,0,0]`)
	assert.NotContains(t, lines[1], `"Kind"`)

	n, err = e.Index(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestElasticSourceStats(t *testing.T) {
	_, e := newFakeCluster(t)
	stats, err := e.SourceStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, len(Kinds))
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, map[string]int{"Reuters": 2}, stats[0].Sources)
	assert.InDelta(t, 0.93, stats[0].AvgCredibility, 1e-9)
}

func TestElasticSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	e, err := NewElastic(types.IndexConfig{Addresses: []string{srv.URL}}, nil)
	require.NoError(t, err)
	_, _, err = e.HybridSearch(context.Background(), "q", nil, 10)
	assert.Error(t, err)
}

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reality-check/internal/httputil"
	"github.com/pdiddy/reality-check/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const newsFixture = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {
      "source": {"id": "reuters", "name": "Reuters"},
      "title": "Large study finds no link between vaccines and autism",
      "description": "Danish cohort of 650,000 children.",
      "url": "https://www.reuters.com/article/1",
      "publishedAt": "2019-03-05T10:00:00Z",
      "content": "Full text here."
    },
    {
      "source": {"id": null, "name": "Local Gazette"},
      "title": "Parents ask questions",
      "description": "",
      "url": "https://gazette.example.com/2",
      "publishedAt": "not a date",
      "content": ""
    }
  ]
}`

const googleFixture = `{
  "items": [
    {"title": "Vaccines and autism", "link": "https://www.snopes.com/fact-check/vaccines-autism/", "snippet": "Claim: vaccines cause autism. Rating: False."},
    {"title": "Autism and Vaccines", "link": "https://www.cdc.gov/vaccinesafety/concerns/autism.html", "snippet": "Studies have shown no link."}
  ]
}`

func withNewsServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := newsAPIBase
	newsAPIBase = srv.URL
	t.Cleanup(func() { newsAPIBase = old })
}

func withGoogleServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := googleSearchBase
	googleSearchBase = srv.URL
	t.Cleanup(func() { googleSearchBase = old })
}

func testSearchConfig() types.SearchConfig {
	return types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    5 * time.Second,
			UserAgent:  "test/0.1",
			MaxRetries: 1,
		},
		NewsAPIKey:     "news-key",
		GoogleAPIKey:   "google-key",
		GoogleEngineID: "engine",
		MaxResults:     25,
	}
}

func testProviders(cfg types.SearchConfig) Providers {
	return NewProviders(cfg, httputil.NewClient(cfg.HTTPConfig), nil, nil)
}

// --- News ---

func TestNewsProvider(t *testing.T) {
	withNewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "vaccines autism", q.Get("q"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "relevancy", q.Get("sortBy"))
		assert.Equal(t, "15", q.Get("pageSize"))
		assert.Equal(t, "news-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "test/0.1", r.Header.Get("User-Agent"))
		w.Write([]byte(newsFixture))
	})

	p := testProviders(testSearchConfig()).News
	got := p.Fetch(context.Background(), "vaccines autism", NewsLimit)
	require.Len(t, got, 2)

	assert.Equal(t, "Reuters", got[0].Source)
	assert.Equal(t, 0.9, got[0].CredibilityScore)
	assert.Equal(t, types.ResultNews, got[0].Type)
	assert.Equal(t, "Danish cohort of 650,000 children. Full text here.", got[0].Content)
	assert.Equal(t, 2019, got[0].PublishDate.Year())
	assert.Equal(t, []string{"Danish cohort of 650,000 children."}, got[0].Highlights.Content)

	assert.Equal(t, 0.5, got[1].CredibilityScore)
	assert.True(t, got[1].PublishDate.IsZero())
	assert.Empty(t, got[1].Highlights.Content)
}

func TestNewsProviderFailOpen(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"articles": [`))
		}},
		{"api error", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
		}},
		{"throttled", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withNewsServer(t, tt.handler)
			got := testProviders(testSearchConfig()).News.Fetch(context.Background(), "q", NewsLimit)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestNewsProviderNotConfigured(t *testing.T) {
	called := false
	withNewsServer(t, func(w http.ResponseWriter, _ *http.Request) { called = true })

	cfg := testSearchConfig()
	cfg.NewsAPIKey = ""
	got := testProviders(cfg).News.Fetch(context.Background(), "q", NewsLimit)
	assert.Empty(t, got)
	assert.False(t, called)
}

// --- Web, fact-check, authority ---

func TestWebProvider(t *testing.T) {
	withGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google-key", q.Get("key"))
		assert.Equal(t, "engine", q.Get("cx"))
		assert.Equal(t, "vaccines", q.Get("q"))
		assert.Equal(t, "10", q.Get("num"), "num is capped at 10")
		w.Write([]byte(googleFixture))
	})

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	oldNow := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = oldNow })

	got := testProviders(testSearchConfig()).Web.Fetch(context.Background(), "vaccines", WebLimit)
	require.Len(t, got, 2)
	assert.Equal(t, "snopes.com", got[0].Source)
	assert.Equal(t, types.ResultWeb, got[0].Type)
	assert.Equal(t, 0.9, got[0].CredibilityScore)
	assert.Equal(t, fixed, got[0].PublishDate)
	assert.Empty(t, got[0].Verdict)
	assert.Equal(t, "cdc.gov", got[1].Source)
	assert.Equal(t, 0.95, got[1].CredibilityScore)
}

func TestFactCheckProvider(t *testing.T) {
	withGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "vaccines fact check OR debunked")
		assert.Contains(t, q, "site:reuters.com/fact-check")
		w.Write([]byte(googleFixture))
	})

	got := testProviders(testSearchConfig()).FactCheck.Fetch(context.Background(), "vaccines", FactCheckLimit)
	require.Len(t, got, 2)
	assert.Equal(t, types.ResultFactCheck, got[0].Type)
	assert.Equal(t, 1.0, got[0].CredibilityScore)
	assert.Equal(t, "false", got[0].Verdict)
	assert.Equal(t, "snopes.com", got[0].FactChecker)
	assert.Equal(t, "unverified", got[1].Verdict)
}

func TestAuthorityProvider(t *testing.T) {
	withGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "site:gov OR site:edu")
		w.Write([]byte(googleFixture))
	})

	got := testProviders(testSearchConfig()).Authority.Fetch(context.Background(), "vaccines", AuthorityLimit)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, types.ResultGovernment, r.Type)
		assert.Equal(t, 1.0, r.CredibilityScore)
	}
}

func TestWebProviderFailOpen(t *testing.T) {
	withGoogleServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"Invalid Value"}}`))
	})

	ps := testProviders(testSearchConfig())
	for _, p := range []Provider{ps.Web, ps.FactCheck, ps.Authority} {
		got := p.Fetch(context.Background(), "q", 10)
		assert.NotNil(t, got, p.Name())
		assert.Empty(t, got, p.Name())
	}
}

type countingObserver struct {
	calls, failed int
}

func (o *countingObserver) ObserveProvider(_ string, _ int, _ time.Duration, failed bool) {
	o.calls++
	if failed {
		o.failed++
	}
}

func TestProviderObserver(t *testing.T) {
	withNewsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	obs := &countingObserver{}
	cfg := testSearchConfig()
	ps := NewProviders(cfg, httputil.NewClient(cfg.HTTPConfig), nil, obs)
	ps.News.Fetch(context.Background(), "q", 5)
	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, 1, obs.failed)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/httputil"
	"github.com/pdiddy/reality-check/pkg/types"
)

// googleSearchBase is the Google Custom Search endpoint. Declared as a var
// so tests can substitute an httptest server.
var googleSearchBase = "https://www.googleapis.com/customsearch/v1"

// Custom Search rejects num outside 1..10.
const googleMaxNum = 10

// now is the clock used for web results, which carry no publish date.
var now = func() time.Time { return time.Now().UTC() }

const (
	factCheckSites = " fact check OR debunked OR verified OR false OR true" +
		" site:snopes.com OR site:politifact.com OR site:factcheck.org OR site:reuters.com/fact-check"
	authoritySites = " site:gov OR site:edu OR site:who.int OR site:cdc.gov OR site:fda.gov OR site:epa.gov"
)

// WebClient queries Google Custom Search. It backs the web, fact-check and
// authority providers, which differ only in query shape and post-processing.
type WebClient struct {
	Client     *http.Client
	APIKey     string
	EngineID   string
	UserAgent  string
	MaxRetries int
	Logger     *zap.Logger
}

// Search returns general web results for query.
func (c *WebClient) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	return c.search(ctx, query, clampLimit(limit, WebLimit, googleMaxNum))
}

// FactCheck searches fact-checking sites and marks hits with a verdict.
func (c *WebClient) FactCheck(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	results, err := c.search(ctx, query+factCheckSites, clampLimit(limit, FactCheckLimit, googleMaxNum))
	if err != nil {
		return nil, err
	}
	for i := range results {
		r := &results[i]
		r.Type = types.ResultFactCheck
		r.CredibilityScore = boost(r.CredibilityScore, factCheckBoost)
		r.Verdict = ExtractVerdict(r.Content)
		r.FactChecker = r.Source
	}
	return results, nil
}

// Authority searches government, academic and health-authority sites.
func (c *WebClient) Authority(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	results, err := c.search(ctx, query+authoritySites, clampLimit(limit, AuthorityLimit, googleMaxNum))
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Type = types.ResultGovernment
		results[i].CredibilityScore = boost(results[i].CredibilityScore, authorityBoost)
	}
	return results, nil
}

func (c *WebClient) search(ctx context.Context, q string, num int) ([]types.SearchResult, error) {
	if c.APIKey == "" || c.EngineID == "" {
		return nil, fmt.Errorf("web: %w", ErrNotConfigured)
	}

	params := url.Values{
		"key": {c.APIKey},
		"cx":  {c.EngineID},
		"q":   {q},
		"num": {strconv.Itoa(num)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("Custom Search request: %w", err)
	}

	var gr googleResponse
	if err := httputil.DecodeJSON(resp, &gr); err != nil {
		return nil, fmt.Errorf("Custom Search: %w", err)
	}
	if gr.Error != nil {
		return nil, fmt.Errorf("Custom Search error %d: %s", gr.Error.Code, gr.Error.Message)
	}

	fetched := now()
	results := make([]types.SearchResult, 0, len(gr.Items))
	for _, item := range gr.Items {
		if len(results) == num {
			break
		}
		results = append(results, types.SearchResult{
			Title:            item.Title,
			Content:          item.Snippet,
			Source:           ExtractDomain(item.Link),
			URL:              item.Link,
			PublishDate:      fetched,
			CredibilityScore: WebCredibility(item.Link),
			Type:             types.ResultWeb,
			Highlights: types.Highlights{
				Title:   []string{item.Title},
				Content: []string{item.Snippet},
			},
		})
	}
	return results, nil
}

// Custom Search JSON structures.
type googleResponse struct {
	Items []googleItem `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type googleItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

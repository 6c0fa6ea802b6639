// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/httputil"
	"github.com/pdiddy/reality-check/pkg/types"
)

// newsAPIBase is the NewsAPI "everything" endpoint. Declared as a var so
// tests can substitute an httptest server.
var newsAPIBase = "https://newsapi.org/v2/everything"

// NewsAPI caps pageSize at 100.
const newsMaxPageSize = 100

// NewsClient queries NewsAPI for recent articles.
type NewsClient struct {
	Client     *http.Client
	APIKey     string
	UserAgent  string
	MaxRetries int
	Logger     *zap.Logger
}

// Search returns up to limit articles for query, scored by outlet.
func (c *NewsClient) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("news: %w", ErrNotConfigured)
	}
	limit = clampLimit(limit, NewsLimit, newsMaxPageSize)

	params := url.Values{
		"q":        {query},
		"language": {"en"},
		"sortBy":   {"relevancy"},
		"pageSize": {strconv.Itoa(limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, newsAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client(), req, c.MaxRetries, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI request: %w", err)
	}

	var nr newsResponse
	if err := httputil.DecodeJSON(resp, &nr); err != nil {
		return nil, fmt.Errorf("NewsAPI: %w", err)
	}
	if nr.Status == "error" {
		return nil, fmt.Errorf("NewsAPI error %s: %s", nr.Code, nr.Message)
	}

	results := make([]types.SearchResult, 0, len(nr.Articles))
	for _, a := range nr.Articles {
		if len(results) == limit {
			break
		}
		results = append(results, a.toResult())
	}
	return results, nil
}

func (c *NewsClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (a newsArticle) toResult() types.SearchResult {
	r := types.SearchResult{
		Title:            a.Title,
		Content:          strings.TrimSpace(a.Description + " " + a.Content),
		Source:           a.Source.Name,
		URL:              a.URL,
		CredibilityScore: NewsCredibility(a.Source.Name),
		Type:             types.ResultNews,
		Highlights: types.Highlights{
			Title:   []string{a.Title},
			Content: []string{},
		},
	}
	if a.Description != "" {
		r.Highlights.Content = []string{a.Description}
	}
	if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
		r.PublishDate = t
	}
	return r
}

// NewsAPI JSON structures.
type newsResponse struct {
	Status       string        `json:"status"`
	TotalResults int           `json:"totalResults"`
	Articles     []newsArticle `json:"articles"`
	Code         string        `json:"code"`
	Message      string        `json:"message"`
}

type newsArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

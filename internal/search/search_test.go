package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
	"pgregory.net/rapid"

	"github.com/pdiddy/reality-check/pkg/types"
)

// --- helpers ---

func static(name string, results []types.SearchResult) Provider {
	return ProviderFunc(name, func(context.Context, string, int) ([]types.SearchResult, error) {
		return results, nil
	}, nil)
}

func failing(name string) Provider {
	return ProviderFunc(name, func(context.Context, string, int) ([]types.SearchResult, error) {
		return nil, errors.New("connection refused")
	}, nil)
}

func hit(title, source string, cred float64, typ types.ResultType) types.SearchResult {
	return types.SearchResult{Title: title, Source: source, CredibilityScore: cred, Type: typ}
}

// --- Dedup ---

func TestDedup(t *testing.T) {
	tests := []struct {
		name   string
		in     []types.SearchResult
		titles []string
	}{
		{"empty", nil, nil},
		{
			"exact duplicate dropped, first wins",
			[]types.SearchResult{
				hit("A", "x.com", 0.6, types.ResultWeb),
				hit("A", "x.com", 0.9, types.ResultFactCheck),
			},
			[]string{"A"},
		},
		{
			"same title different source kept",
			[]types.SearchResult{hit("A", "x.com", 0.6, types.ResultWeb), hit("A", "y.com", 0.6, types.ResultWeb)},
			[]string{"A", "A"},
		},
		{
			"case differences kept",
			[]types.SearchResult{hit("A", "x.com", 0.6, types.ResultWeb), hit("a", "x.com", 0.6, types.ResultWeb)},
			[]string{"A", "a"},
		},
		{
			"www variant kept",
			[]types.SearchResult{hit("A", "x.com", 0.6, types.ResultWeb), hit("A", "www.x.com", 0.6, types.ResultWeb)},
			[]string{"A", "A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedup(tt.in)
			var titles []string
			for _, r := range got {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}

	got := Dedup([]types.SearchResult{
		hit("A", "x.com", 0.6, types.ResultWeb),
		hit("A", "x.com", 0.9, types.ResultFactCheck),
	})
	assert.Equal(t, types.ResultWeb, got[0].Type, "first occurrence must win")
}

func genResult() *rapid.Generator[types.SearchResult] {
	return rapid.Custom(func(t *rapid.T) types.SearchResult {
		return types.SearchResult{
			Title:            rapid.SampledFrom([]string{"A", "B", "C", "a"}).Draw(t, "title"),
			Source:           rapid.SampledFrom([]string{"cdc.gov", "Reuters", "snopes.com"}).Draw(t, "source"),
			CredibilityScore: rapid.SampledFrom([]float64{0.5, 0.6, 0.9, 1.0}).Draw(t, "cred"),
			Type: rapid.SampledFrom([]types.ResultType{
				types.ResultNews, types.ResultWeb, types.ResultFactCheck, types.ResultGovernment,
			}).Draw(t, "type"),
		}
	})
}

func TestDedupIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(genResult()).Draw(t, "results")
		once := Dedup(in)
		twice := Dedup(once)
		if len(once) != len(twice) {
			t.Fatalf("dedup not idempotent: %d then %d", len(once), len(twice))
		}
		for i := range once {
			if dedupKey(once[i]) != dedupKey(twice[i]) || once[i].Type != twice[i].Type {
				t.Fatalf("result %d changed on second pass", i)
			}
		}
		// Every input key survives exactly once.
		keys := make(map[string]int)
		for _, r := range once {
			keys[dedupKey(r)]++
		}
		for _, r := range in {
			if keys[dedupKey(r)] != 1 {
				t.Fatalf("key %q appears %d times", dedupKey(r), keys[dedupKey(r)])
			}
		}
	})
}

// --- Rank ---

func TestRankOrdersByCredibilityThenType(t *testing.T) {
	in := []types.SearchResult{
		hit("w", "a.com", 0.9, types.ResultWeb),
		hit("g", "b.gov", 0.9, types.ResultGovernment),
		hit("n", "Daily", 0.4, types.ResultNews),
	}
	got := Rank(in, 25)
	require.Len(t, got, 3)
	assert.Equal(t, types.ResultGovernment, got[0].Type)
	assert.Equal(t, types.ResultWeb, got[1].Type)
	assert.Equal(t, types.ResultNews, got[2].Type)
}

func TestRankScoresAndTruncation(t *testing.T) {
	var in []types.SearchResult
	for i := 0; i < 30; i++ {
		in = append(in, hit(strings.Repeat("t", i+1), "x.com", 0.6, types.ResultWeb))
	}
	got := Rank(in, 0)
	require.Len(t, got, DefaultSize)
	assert.Equal(t, 1.0, got[0].Score)
	assert.InDelta(t, 1.0/25, got[24].Score, 1e-9)
	// Stable sort keeps input order among equal keys.
	assert.Equal(t, "t", got[0].Title)
}

func TestRankProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(genResult()).Draw(t, "results")
		size := rapid.IntRange(1, 10).Draw(t, "size")
		got := Rank(in, size)
		if len(got) > size {
			t.Fatalf("len %d exceeds size %d", len(got), size)
		}
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1], got[i]
			if cur.CredibilityScore > prev.CredibilityScore {
				t.Fatalf("credibility not descending at %d", i)
			}
			if cur.CredibilityScore == prev.CredibilityScore && cur.Type.Priority() > prev.Type.Priority() {
				t.Fatalf("type priority not descending at %d", i)
			}
			if cur.Score >= prev.Score {
				t.Fatalf("score not strictly decreasing at %d", i)
			}
		}
	})
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, 25))
}

// --- Aggregate ---

func TestAggregateVaccinesScenario(t *testing.T) {
	dup := hit("Vaccines and autism: the evidence", "snopes.com", 0.9, types.ResultWeb)
	dupFact := dup
	dupFact.Type = types.ResultFactCheck
	dupFact.CredibilityScore = 1.0
	dupFact.Verdict = "false"

	agg := NewAggregator(Providers{
		News: static(NameNews, []types.SearchResult{
			hit("Study finds no link", "Reuters", 0.9, types.ResultNews),
			hit("Parents ask questions", "Local Gazette", 0.5, types.ResultNews),
		}),
		Web: static(NameWeb, []types.SearchResult{
			dup,
			hit("Autism overview", "cdc.gov", 0.95, types.ResultWeb),
		}),
		FactCheck: static(NameFactCheck, []types.SearchResult{dupFact}),
		Authority: static(NameAuthority, nil),
	}, nil)

	res := agg.Aggregate(context.Background(), "Do vaccines cause autism?", 25)
	assert.Len(t, res.Results, 4)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.SourceCounts[types.ResultNews])
	assert.Equal(t, 2, res.SourceCounts[types.ResultWeb])
	assert.Equal(t, 1, res.SourceCounts[types.ResultFactCheck])
	assert.False(t, res.FromCache)

	// The web copy appears first in concatenation order and wins.
	for _, r := range res.Results {
		if r.Title == dup.Title {
			assert.Equal(t, types.ResultWeb, r.Type)
		}
	}
}

func TestAggregateFailOpen(t *testing.T) {
	panicky := ProviderFunc(NameAuthority, func(context.Context, string, int) ([]types.SearchResult, error) {
		panic("boom")
	}, nil)

	agg := NewAggregator(Providers{
		News:      failing(NameNews),
		Web:       static(NameWeb, []types.SearchResult{hit("Only", "x.com", 0.6, types.ResultWeb)}),
		FactCheck: failing(NameFactCheck),
		Authority: panicky,
	}, nil)

	res := agg.Aggregate(context.Background(), "q", 25)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Only", res.Results[0].Title)
	assert.Equal(t, 1, res.Total)
}

func TestAggregateAllFail(t *testing.T) {
	agg := NewAggregator(Providers{
		News:      failing(NameNews),
		Web:       failing(NameWeb),
		FactCheck: failing(NameFactCheck),
		Authority: failing(NameAuthority),
	}, nil)

	res := agg.Aggregate(context.Background(), "q", 25)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.Total)
}

func TestAggregatePassesLimits(t *testing.T) {
	got := make(chan int, 4)
	record := func(name string) Provider {
		return ProviderFunc(name, func(_ context.Context, _ string, limit int) ([]types.SearchResult, error) {
			got <- limit
			return nil, nil
		}, nil)
	}
	agg := NewAggregator(Providers{
		News: record(NameNews), Web: record(NameWeb),
		FactCheck: record(NameFactCheck), Authority: record(NameAuthority),
	}, nil)
	agg.Aggregate(context.Background(), "q", 25)
	close(got)

	sum := 0
	for l := range got {
		sum += l
	}
	assert.Equal(t, NewsLimit+WebLimit+FactCheckLimit+AuthorityLimit, sum)
}

// --- MergeIndex ---

type fakeIndex struct {
	hits []types.SearchResult
	err  error
}

func (f fakeIndex) HybridSearch(context.Context, string, []float32, int) ([]types.SearchResult, int, error) {
	return f.hits, len(f.hits), f.err
}

func TestMergeIndex(t *testing.T) {
	base := types.AggregateResult{
		Results:      Rank([]types.SearchResult{hit("A", "x.com", 0.6, types.ResultWeb)}, 25),
		Total:        1,
		SourceCounts: map[types.ResultType]int{types.ResultWeb: 1},
	}
	idx := fakeIndex{hits: []types.SearchResult{
		hit("A", "x.com", 0.6, types.ResultWeb),
		hit("Study", "nih.gov", 0.95, types.ResultGovernment),
	}}

	t.Run("merged", func(t *testing.T) {
		got := MergeIndex(context.Background(), base, idx, "q", []float32{0.1}, 25, nil)
		require.Len(t, got.Results, 2)
		assert.Equal(t, "Study", got.Results[0].Title)
		assert.Equal(t, 3, got.Total)
		assert.Equal(t, 2, got.SourceCounts[types.ResultWeb])
		assert.Equal(t, 1, base.SourceCounts[types.ResultWeb], "input counts must not be mutated")
	})

	t.Run("no embedding", func(t *testing.T) {
		got := MergeIndex(context.Background(), base, idx, "q", nil, 25, nil)
		assert.Equal(t, base, got)
	})

	t.Run("index error", func(t *testing.T) {
		got := MergeIndex(context.Background(), base, fakeIndex{err: errors.New("down")}, "q", []float32{0.1}, 25, nil)
		assert.Equal(t, base, got)
	})

	t.Run("nil index", func(t *testing.T) {
		got := MergeIndex(context.Background(), base, nil, "q", []float32{0.1}, 25, nil)
		assert.Equal(t, base, got)
	})
}

// --- Formatting ---

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(types.AggregateResult{
		Results: []types.SearchResult{
			{Title: strings.Repeat("long title ", 10), Source: "Reuters", Type: types.ResultNews, CredibilityScore: 0.9},
		},
		Total:          3,
		FromCache:      true,
		CacheAgeMillis: 4200,
	}, &buf)
	out := buf.String()
	assert.Contains(t, out, "Rank")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "1 results from 3 hits")
	assert.Contains(t, out, "cached 4s ago")
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(types.AggregateResult{}, &buf)
	assert.Equal(t, "No results found.\n", buf.String())
}

func TestFormatJSONAndYAML(t *testing.T) {
	agg := types.AggregateResult{
		Results: []types.SearchResult{{Title: "T", Source: "S", Type: types.ResultFactCheck, Verdict: "false"}},
		Total:   1,
	}

	var jb bytes.Buffer
	require.NoError(t, FormatJSON(agg, &jb))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jb.Bytes(), &decoded))
	assert.EqualValues(t, 1, decoded["total"])

	var yb bytes.Buffer
	require.NoError(t, FormatYAML(agg, &yb))
	var ydoc map[string]any
	require.NoError(t, yaml.Unmarshal(yb.Bytes(), &ydoc))
	assert.Equal(t, 1, ydoc["total"])
	assert.Contains(t, yb.String(), "verdict: \"false\"")
}

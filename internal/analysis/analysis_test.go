package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reality-check/internal/llm"
	"github.com/pdiddy/reality-check/pkg/types"
)

// --- mock completer ---

type mockCompleter struct {
	reply   string
	err     error
	prompts []string
	opts    []llm.Options
}

func (m *mockCompleter) Complete(_ context.Context, prompt string, opts llm.Options) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	return m.reply, m.err
}

func sources() []types.SearchResult {
	return []types.SearchResult{
		{
			Title: "Autism and Vaccines", Source: "cdc.gov", URL: "https://www.cdc.gov/x",
			Content: strings.Repeat("x", 400), CredibilityScore: 0.95, Type: types.ResultWeb,
		},
		{Title: "", Source: "", Content: "", CredibilityScore: 0.5, Type: types.ResultNews},
	}
}

// --- StripCodeFence ---

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[\"q?\"]\n```", `["q?"]`},
		{"surrounding space", "  \n```json\n{}\n```  \n", `{}`},
		{"single line fence", "```json{}```", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

// --- AnalyzeCredibility ---

func TestAnalyzeCredibility(t *testing.T) {
	m := &mockCompleter{reply: "```json\n" + `{
		"credibility_score": 0.85,
		"confidence_level": "high",
		"key_findings": ["No causal link found"],
		"source_reliability": {"high": ["cdc.gov"], "medium": [], "low": []},
		"consensus": "strong_agreement",
		"red_flags": [],
		"verification_needed": [],
		"summary": "Strong scientific consensus."
	}` + "\n```"}
	a := New(m, nil)

	res, err := a.AnalyzeCredibility(context.Background(), "Do vaccines cause autism?", sources())
	require.NoError(t, err)
	assert.Equal(t, 0.85, res.CredibilityScore)
	assert.Equal(t, types.ConfidenceHigh, res.ConfidenceLevel)
	assert.Equal(t, types.ConsensusStrong, res.Consensus)
	assert.Equal(t, []string{"cdc.gov"}, res.SourceReliability.High)
	assert.False(t, res.Degraded)

	require.Len(t, m.prompts, 1)
	p := m.prompts[0]
	assert.Contains(t, p, `"Do vaccines cause autism?"`)
	assert.Contains(t, p, "1. Autism and Vaccines")
	assert.Contains(t, p, "2. No title")
	assert.Contains(t, p, "Source: Unknown")
	assert.Contains(t, p, strings.Repeat("x", 300)+"...")
	assert.NotContains(t, p, strings.Repeat("x", 301))
	assert.InDelta(t, 0.3, m.opts[0].Temperature, 1e-6)
}

func TestAnalyzeCredibilityNormalizes(t *testing.T) {
	m := &mockCompleter{reply: `{"credibility_score": 1.7, "confidence_level": "very high", "consensus": "unclear"}`}
	res, err := New(m, nil).AnalyzeCredibility(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.CredibilityScore)
	assert.Equal(t, types.ConfidenceLow, res.ConfidenceLevel)
	assert.Equal(t, types.ConsensusMixed, res.Consensus)
	assert.NotNil(t, res.KeyFindings)
}

func TestAnalyzeCredibilityErrors(t *testing.T) {
	tests := []struct {
		name string
		m    *mockCompleter
	}{
		{"model unavailable", &mockCompleter{err: &llm.UnavailableError{Last: errors.New("404")}}},
		{"not json", &mockCompleter{reply: "I think the sources are credible."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.m, nil).AnalyzeCredibility(context.Background(), "q", sources())
			assert.Error(t, err)
		})
	}

	_, err := New(nil, nil).AnalyzeCredibility(context.Background(), "q", nil)
	assert.ErrorIs(t, err, llm.ErrUnavailable)
}

// --- GenerateResponse ---

func TestGenerateResponse(t *testing.T) {
	m := &mockCompleter{reply: "  I found 2 sources. Evidence suggests no link.  "}
	results := sources()
	results[0].Highlights.Content = []string{"first", "second"}
	results[0].Verdict = "false"
	history := []types.Message{
		{Role: types.RoleUser, Content: "earlier question"},
		{Role: types.RoleAssistant, Content: "earlier answer"},
	}

	got, err := New(m, nil).GenerateResponse(context.Background(), "Do vaccines cause autism?", results, history)
	require.NoError(t, err)
	assert.Equal(t, "I found 2 sources. Evidence suggests no link.", got)

	p := m.prompts[0]
	assert.Contains(t, p, "Search Results (2 sources found)")
	assert.Contains(t, p, "Credibility: 0.95/1.0")
	assert.Contains(t, p, "Key excerpt: first...second")
	assert.Contains(t, p, "Fact-check verdict: false")
	assert.Contains(t, p, "user: earlier question")
	assert.Contains(t, p, "assistant: earlier answer")
	assert.Equal(t, 1500, m.opts[0].MaxTokens)
	assert.InDelta(t, 0.6, m.opts[0].Temperature, 1e-6)
}

func TestGenerateResponseNoHistory(t *testing.T) {
	m := &mockCompleter{reply: "ok"}
	_, err := New(m, nil).GenerateResponse(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, m.prompts[0], "Previous conversation context:\nNone")
}

// --- FollowUpQuestions ---

func TestFollowUpQuestions(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []string
		wantErr bool
	}{
		{"array", `["Why?", "How?", "When?"]`, []string{"Why?", "How?", "When?"}, false},
		{"fenced", "```json\n[\"Why?\"]\n```", []string{"Why?"}, false},
		{"blank entries dropped", `["Why?", "  ", ""]`, []string{"Why?"}, false},
		{"empty array", `[]`, nil, true},
		{"object instead of array", `{"questions": ["Why?"]}`, nil, true},
		{"prose", `Here are some questions: Why?`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockCompleter{reply: tt.reply}
			got, err := New(m, nil).FollowUpQuestions(context.Background(), []types.Message{
				{Role: types.RoleUser, Content: "Do vaccines cause autism?"},
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, m.prompts[0], "user: Do vaccines cause autism?")
		})
	}
}

// --- DetectBias ---

func TestDetectBias(t *testing.T) {
	m := &mockCompleter{reply: `{"bias_score": 0.8, "bias_types": ["political"], "inflammatory_language": ["disaster"],
		"emotional_indicators": ["shocking"], "missing_context": ["sample size"], "balanced_assessment": "One-sided."}`}
	got, err := New(m, nil).DetectBias(context.Background(), "A shocking disaster!", "Daily Blog")
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.BiasScore)
	assert.Equal(t, []string{"political"}, got.BiasTypes)
	assert.Contains(t, m.prompts[0], "Source: Daily Blog")

	_, err = New(&mockCompleter{reply: "nope"}, nil).DetectBias(context.Background(), "t", "")
	assert.Error(t, err)
}

// --- Fallbacks ---

func TestDegradedAnalysis(t *testing.T) {
	d := DegradedAnalysis()
	assert.Equal(t, 0.5, d.CredibilityScore)
	assert.Equal(t, types.ConfidenceLow, d.ConfidenceLevel)
	assert.Equal(t, []string{"AI analysis temporarily unavailable"}, d.KeyFindings)
	assert.Equal(t, types.ConsensusMixed, d.Consensus)
	assert.True(t, d.Degraded)
}

func TestFallbackResponse(t *testing.T) {
	var results []types.SearchResult
	for i := 0; i < 7; i++ {
		results = append(results, types.SearchResult{Title: "T", Source: "S", Content: "short"})
	}
	results[0].Content = strings.Repeat("y", 250)
	results[1] = types.SearchResult{}

	got := FallbackResponse("Do vaccines cause autism?", 12, results)
	assert.True(t, strings.HasPrefix(got, `I found 12 sources related to your question "Do vaccines cause autism?". Here are the top findings:`))
	assert.Contains(t, got, "1. T (S)\n   "+strings.Repeat("y", 200)+"...")
	assert.Contains(t, got, "2. Unknown Source (N/A)\n   No content available")
	assert.Contains(t, got, "5. T (S)")
	assert.NotContains(t, got, "6. T (S)")
	assert.True(t, strings.HasSuffix(got, "reviewing these sources directly for a complete understanding."))
}

func TestFallbackResponseNoResults(t *testing.T) {
	got := FallbackResponse("q", 0, nil)
	assert.Contains(t, got, "I found 0 sources")
	assert.Contains(t, got, "Please note: AI analysis is temporarily limited.")
}

func TestDefaultFollowUps(t *testing.T) {
	assert.Len(t, DefaultFollowUps(), 3)
	assert.Equal(t, 0.5, NeutralBias().BiasScore)
}

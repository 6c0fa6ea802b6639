// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis asks the language model to assess sources, write the
// answer, suggest follow-ups and detect bias. Every operation returns an
// error on failure; the fixed fallback values the pipeline substitutes in
// degraded mode live next to them.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/llm"
	"github.com/pdiddy/reality-check/pkg/types"
)

// Completion settings per operation.
var (
	credibilityOptions = llm.Options{MaxTokens: llm.DefaultMaxTokens, Temperature: 0.3}
	responseOptions    = llm.Options{MaxTokens: 1500, Temperature: 0.6}
	followUpOptions    = llm.Options{MaxTokens: llm.DefaultMaxTokens, Temperature: 0.7}
	biasOptions        = llm.Options{MaxTokens: llm.DefaultMaxTokens, Temperature: 0.3}
)

// Analyzer runs the model-backed analysis operations.
type Analyzer struct {
	completer llm.Completer
	logger    *zap.Logger
}

// New returns an Analyzer backed by completer.
func New(completer llm.Completer, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		completer: completer,
		logger:    logger.With(zap.String("component", "analysis")),
	}
}

// AnalyzeCredibility assesses how well sources support or refute question.
func (a *Analyzer) AnalyzeCredibility(ctx context.Context, question string, sources []types.SearchResult) (types.AnalysisResult, error) {
	prompt, err := render(credibilityPromptTmpl, credibilityData{Question: question, Sources: sources})
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("rendering credibility prompt: %w", err)
	}
	text, err := a.complete(ctx, prompt, credibilityOptions)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("credibility analysis: %w", err)
	}

	var res types.AnalysisResult
	if err := decodeJSON(text, &res); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("parsing credibility analysis: %w", err)
	}
	normalizeAnalysis(&res)
	return res, nil
}

// GenerateResponse writes the conversational answer from the ranked
// results and recent history.
func (a *Analyzer) GenerateResponse(ctx context.Context, question string, results []types.SearchResult, history []types.Message) (string, error) {
	prompt, err := render(responsePromptTmpl, responseData{Question: question, Results: results, History: history})
	if err != nil {
		return "", fmt.Errorf("rendering response prompt: %w", err)
	}
	text, err := a.complete(ctx, prompt, responseOptions)
	if err != nil {
		return "", fmt.Errorf("response generation: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// FollowUpQuestions suggests questions from the conversation so far. The
// model must answer with a JSON array of strings.
func (a *Analyzer) FollowUpQuestions(ctx context.Context, conversation []types.Message) ([]string, error) {
	prompt, err := render(followUpPromptTmpl, followUpData{Messages: conversation})
	if err != nil {
		return nil, fmt.Errorf("rendering follow-up prompt: %w", err)
	}
	text, err := a.complete(ctx, prompt, followUpOptions)
	if err != nil {
		return nil, fmt.Errorf("follow-up generation: %w", err)
	}

	var questions []string
	if err := decodeJSON(text, &questions); err != nil {
		return nil, fmt.Errorf("parsing follow-up questions: %w", err)
	}
	out := questions[:0]
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("parsing follow-up questions: empty list")
	}
	return out, nil
}

// DetectBias assesses text from source for bias and loaded language.
func (a *Analyzer) DetectBias(ctx context.Context, text, source string) (types.BiasAnalysis, error) {
	prompt, err := render(biasPromptTmpl, biasData{Text: text, Source: source})
	if err != nil {
		return types.BiasAnalysis{}, fmt.Errorf("rendering bias prompt: %w", err)
	}
	raw, err := a.complete(ctx, prompt, biasOptions)
	if err != nil {
		return types.BiasAnalysis{}, fmt.Errorf("bias detection: %w", err)
	}

	var res types.BiasAnalysis
	if err := decodeJSON(raw, &res); err != nil {
		return types.BiasAnalysis{}, fmt.Errorf("parsing bias analysis: %w", err)
	}
	res.BiasScore = clamp01(res.BiasScore)
	return res, nil
}

func (a *Analyzer) complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if a.completer == nil {
		return "", llm.ErrUnavailable
	}
	return a.completer.Complete(ctx, prompt, opts)
}

// decodeJSON strips a Markdown code fence, if any, and decodes the rest.
func decodeJSON(text string, v any) error {
	return json.Unmarshal([]byte(StripCodeFence(text)), v)
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalizeAnalysis(r *types.AnalysisResult) {
	r.CredibilityScore = clamp01(r.CredibilityScore)
	switch r.ConfidenceLevel {
	case types.ConfidenceHigh, types.ConfidenceMedium, types.ConfidenceLow:
	default:
		r.ConfidenceLevel = types.ConfidenceLow
	}
	switch r.Consensus {
	case types.ConsensusStrong, types.ConsensusModerate, types.ConsensusMixed, types.ConsensusConflicting:
	default:
		r.Consensus = types.ConsensusMixed
	}
	if r.KeyFindings == nil {
		r.KeyFindings = []string{}
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

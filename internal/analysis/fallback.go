// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"fmt"
	"strings"

	"github.com/pdiddy/reality-check/pkg/types"
)

// fallbackTopN results are listed in the templated answer.
const fallbackTopN = 5

const fallbackExcerpt = 200

// DegradedAnalysis is substituted when credibility analysis fails.
func DegradedAnalysis() types.AnalysisResult {
	return types.AnalysisResult{
		CredibilityScore: 0.5,
		ConfidenceLevel:  types.ConfidenceLow,
		KeyFindings:      []string{"AI analysis temporarily unavailable"},
		SourceReliability: types.SourceReliability{
			High:   []string{},
			Medium: []string{},
			Low:    []string{},
		},
		Consensus:          types.ConsensusMixed,
		RedFlags:           []string{},
		VerificationNeeded: []string{},
		Summary:            "Manual review recommended - AI analysis unavailable",
		Degraded:           true,
	}
}

// FallbackResponse lists the top results when the answer cannot be
// generated. total is the number of sources found.
func FallbackResponse(question string, total int, results []types.SearchResult) string {
	if len(results) > fallbackTopN {
		results = results[:fallbackTopN]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d sources related to your question \"%s\". Here are the top findings:\n\n", total, question)
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n   %s",
			i+1,
			orDefault(r.Title, "Unknown Source"),
			orDefault(r.Source, "N/A"),
			excerpt(orDefault(r.Content, "No content available"), fallbackExcerpt),
		)
	}
	b.WriteString("\n\nPlease note: AI analysis is temporarily limited. I recommend reviewing these sources directly for a complete understanding.")
	return b.String()
}

// DefaultFollowUps is substituted when follow-up generation fails.
func DefaultFollowUps() []string {
	return []string{
		"Can you tell me more about the sources for this information?",
		"What are the main counterarguments to this claim?",
		"How reliable are the sources that discuss this topic?",
	}
}

// NeutralBias is substituted when bias detection fails.
func NeutralBias() types.BiasAnalysis {
	return types.BiasAnalysis{
		BiasScore:            0.5,
		BiasTypes:            []string{},
		InflammatoryLanguage: []string{},
		EmotionalIndicators:  []string{},
		MissingContext:       []string{},
		BalancedAssessment:   "Unable to complete bias analysis",
	}
}

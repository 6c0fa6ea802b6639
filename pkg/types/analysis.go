// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConfidenceLevel grades how sure the credibility analysis is.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Consensus describes how far the analyzed sources agree.
type Consensus string

const (
	ConsensusStrong      Consensus = "strong_agreement"
	ConsensusModerate    Consensus = "moderate_agreement"
	ConsensusMixed       Consensus = "mixed"
	ConsensusConflicting Consensus = "conflicting"
)

// SourceReliability buckets source names by assessed reliability.
type SourceReliability struct {
	High   []string `json:"high"`
	Medium []string `json:"medium"`
	Low    []string `json:"low"`
}

// AnalysisResult is the credibility assessment of a set of sources. It is
// produced by the language model or, in degraded mode, by a fixed default.
type AnalysisResult struct {
	CredibilityScore   float64           `json:"credibility_score"`
	ConfidenceLevel    ConfidenceLevel   `json:"confidence_level"`
	KeyFindings        []string          `json:"key_findings"`
	SourceReliability  SourceReliability `json:"source_reliability"`
	Consensus          Consensus         `json:"consensus"`
	RedFlags           []string          `json:"red_flags"`
	VerificationNeeded []string          `json:"verification_needed"`
	Summary            string            `json:"summary"`

	// Degraded is true when the fixed fallback replaced a model answer.
	Degraded bool `json:"degraded,omitempty"`
}

// BiasAnalysis is the result of a bias check on a single text.
type BiasAnalysis struct {
	BiasScore            float64  `json:"bias_score"`
	BiasTypes            []string `json:"bias_types"`
	InflammatoryLanguage []string `json:"inflammatory_language"`
	EmotionalIndicators  []string `json:"emotional_indicators"`
	MissingContext       []string `json:"missing_context"`
	BalancedAssessment   string   `json:"balanced_assessment"`
}

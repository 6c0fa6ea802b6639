// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  *AnswerMetadata `json:"metadata,omitempty"`
}

// Conversation is the in-memory record of one user's exchange.
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Recent returns at most the last n messages.
func (c *Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Stage is a step of the analysis pipeline, in the order it is entered.
type Stage string

const (
	StageUnderstanding Stage = "understanding"
	StageSearching     Stage = "searching"
	StageAnalyzing     Stage = "analyzing"
	StageGenerating    Stage = "generating"
	StageDone          Stage = "done"
	StageError         Stage = "error"
)

// Order returns the position of the stage in the pipeline. Unknown and
// terminal stages return -1.
func (s Stage) Order() int {
	switch s {
	case StageUnderstanding:
		return 0
	case StageSearching:
		return 1
	case StageAnalyzing:
		return 2
	case StageGenerating:
		return 3
	default:
		return -1
	}
}

// ProgressEvent reports a stage transition to the asking client.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// ErrorEvent terminates a question that failed outside the guarded stages.
type ErrorEvent struct {
	Message string `json:"message"`
}

// SearchStats summarizes the search behind an answer.
type SearchStats struct {
	TotalSources     int             `json:"totalSources"`
	SourcesAnalyzed  int             `json:"sourcesAnalyzed"`
	CredibilityScore float64         `json:"credibilityScore"`
	ConfidenceLevel  ConfidenceLevel `json:"confidenceLevel"`
}

// SourceSummary is the client-facing projection of a SearchResult.
type SourceSummary struct {
	Title            string     `json:"title"`
	Source           string     `json:"source"`
	URL              string     `json:"url"`
	Type             ResultType `json:"type"`
	CredibilityScore float64    `json:"credibilityScore"`
	RelevanceScore   float64    `json:"relevanceScore"`
	PublishDate      time.Time  `json:"publishDate"`
	Verdict          string     `json:"verdict,omitempty"`
}

// AnswerMetadata carries everything behind an answer except the text.
type AnswerMetadata struct {
	SearchStats       SearchStats     `json:"searchStats"`
	Sources           []SourceSummary `json:"sources"`
	Analysis          AnalysisResult  `json:"analysis"`
	FollowUpQuestions []string        `json:"followUpQuestions"`
	FromCache         bool            `json:"fromCache"`
	CacheAgeMillis    int64           `json:"cacheAgeMillis,omitempty"`
}

// Answer is the terminal success response for one question.
type Answer struct {
	Message  string         `json:"message"`
	Metadata AnswerMetadata `json:"metadata"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline answers one question at a time: it looks up or runs
// the multi-source search, scores the sources, writes the answer and
// suggests follow-ups, reporting each stage to the asker. Every model-backed
// stage degrades to a fixed fallback on its own, so a question fails only
// when something outside those stages breaks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/analysis"
	"github.com/pdiddy/reality-check/internal/llm"
	"github.com/pdiddy/reality-check/internal/search"
	"github.com/pdiddy/reality-check/pkg/types"
)

// Messages sent with each stage and on failure.
const (
	msgUnderstanding = "Understanding your question and determining search strategy..."
	msgSearchingLive = "Searching news, fact-checkers, and web sources in real-time..."
	msgSearchCached  = "Found %d cached results from previous search..."
	msgAnalyzing     = "Found %d relevant sources. Analyzing credibility..."
	msgGenerating    = "Generating balanced analysis and response..."

	// FailureMessage is the only error text a client sees for a question
	// that could not be answered.
	FailureMessage = "Failed to process your question. Please try again."
)

// followUpWindow is how many past messages feed follow-up generation.
const followUpWindow = 4

// CacheTTL is how long a fresh aggregate is cached.
const CacheTTL = time.Hour

var (
	// ErrEmptyQuestion rejects a blank question before the pipeline runs.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrFailed reports a question that ended with the terminal error event.
	ErrFailed = errors.New("pipeline failed")
)

// Searcher runs the multi-source search.
type Searcher interface {
	Aggregate(ctx context.Context, query string, size int) types.AggregateResult
}

// Cache stores aggregates by query. Both operations fail open.
type Cache interface {
	Get(ctx context.Context, query string) (types.AggregateResult, bool)
	Set(ctx context.Context, query string, value types.AggregateResult, ttl time.Duration)
}

// Analyst runs the model-backed stages.
type Analyst interface {
	AnalyzeCredibility(ctx context.Context, question string, sources []types.SearchResult) (types.AnalysisResult, error)
	GenerateResponse(ctx context.Context, question string, results []types.SearchResult, history []types.Message) (string, error)
	FollowUpQuestions(ctx context.Context, conversation []types.Message) ([]string, error)
}

// StageObserver records stage timings and whether a fallback was used.
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration, degraded bool)
}

// Orchestrator wires the pipeline's collaborators. Search, Analyst and
// Sessions are required; the rest may be nil.
type Orchestrator struct {
	Search   Searcher
	Cache    Cache
	Index    search.Index
	Embedder llm.Embedder
	Analyst  Analyst
	Sessions SessionStore
	Config   types.PipelineConfig
	Logger   *zap.Logger
	Observer StageObserver

	now func() time.Time
}

// Start creates and saves an empty conversation.
func (o *Orchestrator) Start(ctx context.Context, userID string) (*types.Conversation, error) {
	return o.create(ctx, uuid.NewString(), userID)
}

// Open returns the conversation with id, creating an empty one under that
// id when it does not exist. An empty id gets a fresh one.
func (o *Orchestrator) Open(ctx context.Context, id, userID string) (*types.Conversation, error) {
	if id == "" {
		return o.Start(ctx, userID)
	}
	conv, err := o.Sessions.Get(ctx, id)
	if errors.Is(err, ErrConversationNotFound) {
		return o.create(ctx, id, userID)
	}
	return conv, err
}

func (o *Orchestrator) create(ctx context.Context, id, userID string) (*types.Conversation, error) {
	if userID == "" {
		userID = "anonymous"
	}
	t := o.clock()
	conv := &types.Conversation{
		ID:          id,
		UserID:      userID,
		Messages:    []types.Message{},
		CreatedAt:   t,
		LastUpdated: t,
	}
	if err := o.Sessions.Put(ctx, conv); err != nil {
		return nil, fmt.Errorf("starting conversation: %w", err)
	}
	o.log().Info("conversation started", zap.String("conversation", conv.ID), zap.String("user", userID))
	return conv, nil
}

// History returns the stored conversation.
func (o *Orchestrator) History(ctx context.Context, id string) (*types.Conversation, error) {
	return o.Sessions.Get(ctx, id)
}

// Validate checks a question before it enters the pipeline and returns
// the conversation it belongs to.
func (o *Orchestrator) Validate(ctx context.Context, conversationID, question string) (*types.Conversation, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	return o.Sessions.Get(ctx, conversationID)
}

// Ask validates and answers question within the conversation, reporting
// progress to sink. Validation errors are returned before any event is
// sent. Once the pipeline starts it runs to completion even if ctx is
// cancelled, and the sink always receives exactly one terminal event.
func (o *Orchestrator) Ask(ctx context.Context, conversationID, question string, sink Sink) (types.Answer, error) {
	conv, err := o.Validate(ctx, conversationID, question)
	if err != nil {
		return types.Answer{}, err
	}
	return o.Run(ctx, conv, strings.TrimSpace(question), sink)
}

// Run answers an already validated question.
func (o *Orchestrator) Run(ctx context.Context, conv *types.Conversation, question string, sink Sink) (types.Answer, error) {
	ctx = context.WithoutCancel(ctx)
	logger := o.log().With(zap.String("conversation", conv.ID))
	progress := NewProgress(sink, logger)

	answer, err := o.run(ctx, conv, question, progress, logger)
	if err != nil {
		logger.Error("question failed", zap.String("question", question), zap.Error(err))
		if ferr := progress.Fail(FailureMessage); ferr != nil {
			logger.Debug("terminal event already sent", zap.Error(ferr))
		}
		return types.Answer{}, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	if err := progress.Complete(answer); err != nil {
		logger.Warn("answer not delivered", zap.Error(err))
	}
	o.record(ctx, conv.ID, question, answer, logger)
	return answer, nil
}

// run executes the stages. A panic anywhere below is turned into an error.
func (o *Orchestrator) run(ctx context.Context, conv *types.Conversation, question string, progress *Progress, logger *zap.Logger) (answer types.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg := o.config()

	if err := progress.Emit(types.StageUnderstanding, msgUnderstanding); err != nil {
		return types.Answer{}, err
	}
	embedding := o.embed(ctx, question, logger)

	agg, err := o.search(ctx, question, embedding, cfg.SearchSize, progress, logger)
	if err != nil {
		return types.Answer{}, err
	}

	if err := progress.Emit(types.StageAnalyzing, fmt.Sprintf(msgAnalyzing, agg.Total)); err != nil {
		return types.Answer{}, err
	}
	credibility := o.analyze(ctx, question, agg.Top(cfg.AnalyzeTopN), logger)

	if err := progress.Emit(types.StageGenerating, msgGenerating); err != nil {
		return types.Answer{}, err
	}
	history := conv.Recent(cfg.HistoryWindow)
	response := o.generate(ctx, question, agg, cfg.GenerateTopN, history, logger)
	followUps := o.followUps(ctx, conv, question, response, logger)

	return types.Answer{
		Message: response,
		Metadata: types.AnswerMetadata{
			SearchStats: types.SearchStats{
				TotalSources:     agg.Total,
				SourcesAnalyzed:  min(cfg.SearchSize, len(agg.Results)),
				CredibilityScore: credibility.CredibilityScore,
				ConfidenceLevel:  credibility.ConfidenceLevel,
			},
			Sources:           summarize(agg.Top(cfg.SearchSize)),
			Analysis:          credibility,
			FollowUpQuestions: followUps,
			FromCache:         agg.FromCache,
			CacheAgeMillis:    agg.CacheAgeMillis,
		},
	}, nil
}

// embed returns the query embedding or nil.
func (o *Orchestrator) embed(ctx context.Context, question string, logger *zap.Logger) []float32 {
	if o.Embedder == nil {
		return nil
	}
	start := time.Now()
	vec, err := o.Embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("query embedding failed, skipping secondary index", zap.Error(err))
		o.observe(types.StageUnderstanding, start, true)
		return nil
	}
	o.observe(types.StageUnderstanding, start, false)
	return vec
}

// search emits the searching stage and returns a cached or fresh aggregate.
func (o *Orchestrator) search(ctx context.Context, question string, embedding []float32, size int, progress *Progress, logger *zap.Logger) (types.AggregateResult, error) {
	start := time.Now()
	if o.Cache != nil {
		if cached, ok := o.Cache.Get(ctx, question); ok {
			logger.Info("using cached search results",
				zap.Int("results", len(cached.Results)),
				zap.Int64("age_ms", cached.CacheAgeMillis))
			if err := progress.Emit(types.StageSearching, fmt.Sprintf(msgSearchCached, cached.Total)); err != nil {
				return types.AggregateResult{}, err
			}
			o.observe(types.StageSearching, start, false)
			return cached, nil
		}
	}

	if err := progress.Emit(types.StageSearching, msgSearchingLive); err != nil {
		return types.AggregateResult{}, err
	}
	agg := o.Search.Aggregate(ctx, question, size)
	if o.Index != nil {
		agg = search.MergeIndex(ctx, agg, o.Index, question, embedding, size, logger)
	}
	// Empty aggregates are not cached.
	if o.Cache != nil && len(agg.Results) > 0 {
		o.Cache.Set(ctx, question, agg, CacheTTL)
	}
	logger.Info("search complete", zap.Int("total", agg.Total), zap.Int("results", len(agg.Results)))
	o.observe(types.StageSearching, start, len(agg.Results) == 0)
	return agg, nil
}

func (o *Orchestrator) analyze(ctx context.Context, question string, sources []types.SearchResult, logger *zap.Logger) types.AnalysisResult {
	start := time.Now()
	res, err := o.Analyst.AnalyzeCredibility(ctx, question, sources)
	if err != nil {
		logger.Warn("credibility analysis failed, using degraded result", zap.Error(err))
		o.observe(types.StageAnalyzing, start, true)
		return analysis.DegradedAnalysis()
	}
	o.observe(types.StageAnalyzing, start, false)
	return res
}

func (o *Orchestrator) generate(ctx context.Context, question string, agg types.AggregateResult, topN int, history []types.Message, logger *zap.Logger) string {
	start := time.Now()
	text, err := o.Analyst.GenerateResponse(ctx, question, agg.Top(topN), history)
	if err != nil || text == "" {
		logger.Warn("response generation failed, using fallback response", zap.Error(err))
		o.observe(types.StageGenerating, start, true)
		return analysis.FallbackResponse(question, agg.Total, agg.Results)
	}
	o.observe(types.StageGenerating, start, false)
	return text
}

// followUps suggests questions from the last few messages plus this exchange.
func (o *Orchestrator) followUps(ctx context.Context, conv *types.Conversation, question, response string, logger *zap.Logger) []string {
	start := time.Now()
	recent := conv.Recent(followUpWindow)
	exchange := make([]types.Message, 0, len(recent)+2)
	exchange = append(exchange, recent...)
	exchange = append(exchange,
		types.Message{Role: types.RoleUser, Content: question},
		types.Message{Role: types.RoleAssistant, Content: response},
	)

	questions, err := o.Analyst.FollowUpQuestions(ctx, exchange)
	if err != nil {
		logger.Warn("follow-up generation failed, using defaults", zap.Error(err))
		o.observe("follow_up", start, true)
		return analysis.DefaultFollowUps()
	}
	o.observe("follow_up", start, false)
	return questions
}

// record appends the exchange to the stored conversation and keeps only the
// most recent MaxMessages. The conversation is loaded again so concurrent
// questions do not drop each other's turns.
func (o *Orchestrator) record(ctx context.Context, id, question string, answer types.Answer, logger *zap.Logger) {
	conv, err := o.Sessions.Get(ctx, id)
	if err != nil {
		logger.Warn("conversation gone before answer was saved", zap.Error(err))
		return
	}
	t := o.clock()
	meta := answer.Metadata
	conv.Messages = append(conv.Messages,
		types.Message{Role: types.RoleUser, Content: question, Timestamp: t},
		types.Message{Role: types.RoleAssistant, Content: answer.Message, Timestamp: t, Metadata: &meta},
	)
	if limit := o.config().MaxMessages; len(conv.Messages) > limit {
		conv.Messages = append([]types.Message(nil), conv.Recent(limit)...)
	}
	conv.LastUpdated = t
	if err := o.Sessions.Put(ctx, conv); err != nil {
		logger.Warn("saving conversation failed", zap.Error(err))
	}
}

func summarize(results []types.SearchResult) []types.SourceSummary {
	out := make([]types.SourceSummary, 0, len(results))
	for _, r := range results {
		out = append(out, types.SourceSummary{
			Title:            r.Title,
			Source:           r.Source,
			URL:              r.URL,
			Type:             r.Type,
			CredibilityScore: r.CredibilityScore,
			RelevanceScore:   r.Score,
			PublishDate:      r.PublishDate,
			Verdict:          r.Verdict,
		})
	}
	return out
}

func (o *Orchestrator) observe(stage types.Stage, start time.Time, degraded bool) {
	if o.Observer != nil {
		o.Observer.ObserveStage(string(stage), time.Since(start), degraded)
	}
}

func (o *Orchestrator) config() types.PipelineConfig {
	cfg := o.Config
	def := types.DefaultConfig().Pipeline
	if cfg.SearchSize <= 0 {
		cfg.SearchSize = def.SearchSize
	}
	if cfg.AnalyzeTopN <= 0 {
		cfg.AnalyzeTopN = def.AnalyzeTopN
	}
	if cfg.GenerateTopN <= 0 {
		cfg.GenerateTopN = def.GenerateTopN
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	return cfg
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger.With(zap.String("component", "pipeline"))
}

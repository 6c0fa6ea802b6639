// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/analysis"
	"github.com/pdiddy/reality-check/internal/keepalive"
	"github.com/pdiddy/reality-check/internal/pipeline"
	"github.com/pdiddy/reality-check/pkg/types"
)

// Welcome is the first assistant message of every conversation.
const Welcome = "Hello! I'm Reality Check, your AI-powered information navigator. " +
	"Ask me about any claim, news story, or information you'd like me to verify and analyze."

// Suggestions are offered when a conversation starts.
var Suggestions = []string{
	"I saw a post about electric cars being worse for the environment. Is this true?",
	"Help me understand the different perspectives on this economic policy",
	"Can you fact-check this article I found on social media?",
}

const maxSearchSize = 50

type startResponse struct {
	ConversationID string   `json:"conversationId"`
	Message        string   `json:"message"`
	Suggestions    []string `json:"suggestions"`
}

type askRequest struct {
	ConversationID string `json:"conversationId"`
	Question       string `json:"question"`
}

type historyResponse struct {
	ConversationID string          `json:"conversationId"`
	Messages       []types.Message `json:"messages"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

type searchRequest struct {
	Query string `json:"query"`
	Size  int    `json:"size"`
}

type credibilityRequest struct {
	Content string               `json:"content"`
	Sources []types.SearchResult `json:"sources"`
}

type biasRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) handleStart(c *gin.Context) {
	conv, err := s.deps.Conversations.Start(c.Request.Context(), c.GetHeader("X-User-ID"))
	if err != nil {
		_ = c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "Failed to start conversation")
		return
	}
	c.JSON(http.StatusOK, startResponse{
		ConversationID: conv.ID,
		Message:        Welcome,
		Suggestions:    Suggestions,
	})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	conv, err := s.deps.Conversations.Validate(ctx, req.ConversationID, req.Question)
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		errorJSON(c, http.StatusBadRequest, "Question is required")
		return
	case errors.Is(err, pipeline.ErrConversationNotFound):
		errorJSON(c, http.StatusNotFound, "Conversation not found")
		return
	case err != nil:
		_ = c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "Failed to process question")
		return
	}

	answer, err := s.deps.Conversations.Run(ctx, conv, strings.TrimSpace(req.Question), nil)
	s.recordQuestion("http", err == nil)
	if err != nil {
		_ = c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "Failed to process question")
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleHistory(c *gin.Context) {
	conv, err := s.deps.Conversations.History(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, pipeline.ErrConversationNotFound):
		errorJSON(c, http.StatusNotFound, "Conversation not found")
		return
	case err != nil:
		_ = c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "Failed to retrieve conversation history")
		return
	}
	c.JSON(http.StatusOK, historyResponse{
		ConversationID: conv.ID,
		Messages:       conv.Messages,
		CreatedAt:      conv.CreatedAt,
		LastUpdated:    conv.LastUpdated,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		errorJSON(c, http.StatusBadRequest, "Query is required")
		return
	}
	size := req.Size
	if size <= 0 {
		size = types.DefaultConfig().Pipeline.SearchSize
	}
	size = min(size, maxSearchSize)
	c.JSON(http.StatusOK, s.deps.Search.Aggregate(c.Request.Context(), q, size))
}

func (s *Server) handleIndexStats(c *gin.Context) {
	if s.deps.Index == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Secondary index disabled")
		return
	}
	stats, err := s.deps.Index.SourceStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		errorJSON(c, http.StatusInternalServerError, "Failed to retrieve index stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"indexes":   stats,
	})
}

func (s *Server) handleCredibility(c *gin.Context) {
	var req credibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		errorJSON(c, http.StatusBadRequest, "Content is required")
		return
	}
	res, err := s.deps.Analyst.AnalyzeCredibility(c.Request.Context(), req.Content, req.Sources)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Credibility analysis failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleBias(c *gin.Context) {
	var req biasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		errorJSON(c, http.StatusBadRequest, "Text is required")
		return
	}
	res, err := s.deps.Analyst.DetectBias(c.Request.Context(), req.Text, req.Source)
	if err != nil {
		s.logger.Warn("bias detection failed, returning neutral result", zap.Error(err))
		res = analysis.NeutralBias()
	}
	c.JSON(http.StatusOK, res)
}

// Service states reported by the health endpoint.
const (
	stateHealthy   = "healthy"
	stateUnhealthy = "unhealthy"
	stateDisabled  = "disabled"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Model     string            `json:"model,omitempty"`
	Models    []string          `json:"models,omitempty"`
	Keepalive *keepalive.Status `json:"keepalive,omitempty"`
}

// handleHealth reports each dependency. The status is 503 when any enabled
// dependency is unhealthy.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	resp := healthResponse{
		Status:    stateHealthy,
		Timestamp: time.Now().UTC(),
		Services: map[string]string{
			"index": stateDisabled,
			"llm":   stateDisabled,
			"redis": stateDisabled,
		},
	}

	if s.deps.Index != nil {
		resp.Services["index"] = stateHealthy
		if err := s.deps.Index.Ping(ctx); err != nil {
			resp.Services["index"] = stateUnhealthy
		}
	}
	if s.deps.Models != nil {
		resp.Models = s.deps.Models.Models()
		resp.Model = s.deps.Models.Working()
		resp.Services["llm"] = stateHealthy
		if len(resp.Models) == 0 {
			resp.Services["llm"] = stateUnhealthy
		}
	}
	if s.deps.Cache != nil {
		resp.Services["redis"] = stateHealthy
		if !s.deps.Cache.Stats(ctx).Connected {
			resp.Services["redis"] = stateUnhealthy
		}
	}
	if s.deps.Keepalive != nil {
		st := s.deps.Keepalive.Status()
		resp.Keepalive = &st
	}

	code := http.StatusOK
	for _, state := range resp.Services {
		if state == stateUnhealthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, resp)
}

func (s *Server) handleCacheStats(c *gin.Context) {
	if s.deps.Cache == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Cache disabled")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"cache":     s.deps.Cache.Stats(c.Request.Context()),
	})
}

func (s *Server) recordQuestion(transport string, ok bool) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordQuestion(transport, ok)
	}
}

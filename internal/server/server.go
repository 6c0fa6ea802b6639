// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline over HTTP and WebSocket. It is a
// transport adapter only: validation happens here, everything else is
// delegated to the pipeline, the aggregator and the analyzer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/cache"
	"github.com/pdiddy/reality-check/internal/index"
	"github.com/pdiddy/reality-check/internal/keepalive"
	"github.com/pdiddy/reality-check/internal/metrics"
	"github.com/pdiddy/reality-check/internal/pipeline"
	"github.com/pdiddy/reality-check/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Conversations is the part of the orchestrator the server drives.
type Conversations interface {
	Start(ctx context.Context, userID string) (*types.Conversation, error)
	Open(ctx context.Context, id, userID string) (*types.Conversation, error)
	History(ctx context.Context, id string) (*types.Conversation, error)
	Validate(ctx context.Context, conversationID, question string) (*types.Conversation, error)
	Run(ctx context.Context, conv *types.Conversation, question string, sink pipeline.Sink) (types.Answer, error)
}

// Analyst serves the standalone analysis routes.
type Analyst interface {
	AnalyzeCredibility(ctx context.Context, question string, sources []types.SearchResult) (types.AnalysisResult, error)
	DetectBias(ctx context.Context, text, source string) (types.BiasAnalysis, error)
}

// CacheStatus reports on the aggregate cache.
type CacheStatus interface {
	Stats(ctx context.Context) cache.Stats
}

// IndexStatus reports on the secondary index.
type IndexStatus interface {
	SourceStats(ctx context.Context) ([]index.KindStats, error)
	Ping(ctx context.Context) error
}

// ModelStatus reports on the model fallback chain.
type ModelStatus interface {
	Working() string
	Models() []string
}

// KeepaliveStatus reports on the scheduled jobs.
type KeepaliveStatus interface {
	Status() keepalive.Status
}

// Deps are the collaborators behind the routes. Conversations, Search and
// Analyst are required; a nil optional dependency reports as disabled.
type Deps struct {
	Conversations Conversations
	Search        pipeline.Searcher
	Analyst       Analyst

	Cache     CacheStatus
	Index     IndexStatus
	Models    ModelStatus
	Keepalive KeepaliveStatus
	Metrics   *metrics.Collector
}

// Server is the HTTP and WebSocket front end.
type Server struct {
	cfg    types.ServerConfig
	deps   Deps
	logger *zap.Logger
	engine *gin.Engine

	upgrader websocket.Upgrader
	limiter  *rateLimiter

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  chan struct{}
	once    sync.Once
}

// New builds the router. gin's mode is left to the caller.
func New(cfg types.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With(zap.String("component", "server")),
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateWindow),
		clients: make(map[*wsClient]struct{}),
		closed:  make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), corsMiddleware(s.cfg), limitBody())
	if s.limiter != nil {
		r.Use(s.limiter.middleware())
	}

	auth := requireAPIKey(s.cfg.APIKeys, false)

	conv := r.Group("/api/conversation", auth)
	{
		conv.POST("/start", s.handleStart)
		conv.POST("/ask", s.handleAsk)
		conv.GET("/:id/history", s.handleHistory)
	}

	search := r.Group("/api/search", auth)
	{
		search.POST("/query", s.handleSearch)
		search.GET("/stats", s.handleIndexStats)
	}

	an := r.Group("/api/analysis", auth)
	{
		an.POST("/credibility", s.handleCredibility)
		an.POST("/bias", s.handleBias)
	}

	health := r.Group("/api/health")
	{
		health.GET("", s.handleHealth)
		health.GET("/cache-stats", s.handleCacheStats)
	}

	r.GET("/ws", requireAPIKey(s.cfg.APIKeys, true), s.handleWebSocket)

	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the configured address until ctx is cancelled, then
// shuts down gracefully and closes open WebSocket connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// Close disconnects every WebSocket client. Running questions finish but
// their events are dropped.
func (s *Server) Close() {
	s.once.Do(func() { close(s.closed) })
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

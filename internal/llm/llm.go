// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides text completion over an ordered list of candidate
// models and query embeddings. Callers see a single Completer; which model
// answered is an implementation detail.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// Default completion options.
const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

const defaultTimeout = 60 * time.Second

// Options tune a single completion.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// DefaultOptions returns maxTokens 2048 and temperature 0.7.
func DefaultOptions() Options {
	return Options{MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature}
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature < 0 {
		o.Temperature = DefaultTemperature
	}
	return o
}

// Completer turns a prompt into text or fails.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client talks to one completion API and can serve several models.
type Client interface {
	Name() string
	Complete(ctx context.Context, model, prompt string, opts Options) (string, error)
}

// Candidate pairs a client with one of its models.
type Candidate struct {
	Client Client
	Model  string
}

func (c Candidate) String() string {
	return c.Client.Name() + "/" + c.Model
}

// ErrUnavailable matches any *UnavailableError via errors.Is.
var ErrUnavailable = errors.New("language model unavailable")

// UnavailableError is returned once every candidate has failed.
type UnavailableError struct {
	Tried []string
	Last  error
}

func (e *UnavailableError) Error() string {
	if len(e.Tried) == 0 {
		return "language model unavailable: no models configured"
	}
	return fmt.Sprintf("language model unavailable after trying %s: %v", strings.Join(e.Tried, ", "), e.Last)
}

// Is reports target == ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unwrap returns the last candidate's failure.
func (e *UnavailableError) Unwrap() error { return e.Last }

// Chain tries each candidate in order until one returns non-empty text.
type Chain struct {
	candidates []Candidate
	timeout    time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	working string
}

// NewChain returns a Chain over candidates. timeout bounds each attempt.
func NewChain(candidates []Candidate, timeout time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Chain{
		candidates: candidates,
		timeout:    timeout,
		logger:     logger.With(zap.String("component", "llm")),
	}
}

// Complete returns the first successful completion. After every candidate
// fails it returns an *UnavailableError wrapping the last cause.
func (c *Chain) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	opts = opts.withDefaults()
	uerr := &UnavailableError{}

	for _, cand := range c.candidates {
		name := cand.String()
		uerr.Tried = append(uerr.Tried, name)

		text, err := c.attempt(ctx, cand, prompt, opts)
		if err == nil {
			c.remember(name)
			return text, nil
		}
		uerr.Last = err
		c.logger.Warn("model failed, trying next", zap.String("model", name), zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", uerr
}

func (c *Chain) attempt(ctx context.Context, cand Candidate, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := cand.Client.Complete(ctx, cand.Model, prompt, opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

func (c *Chain) remember(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.working != name {
		c.logger.Info("using model", zap.String("model", name))
		c.working = name
	}
}

// Working returns the last model that answered, or "" if none has.
func (c *Chain) Working() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working
}

// Models lists the candidates in trial order.
func (c *Chain) Models() []string {
	out := make([]string, len(c.candidates))
	for i, cand := range c.candidates {
		out[i] = cand.String()
	}
	return out
}

// New builds the completion chain and embedder described by cfg.
// Candidates whose provider has no API key are skipped. The embedder is
// nil when no embedding model or OpenAI key is configured.
func New(cfg types.LLMConfig, logger *zap.Logger) (*Chain, Embedder) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var openaiClient, anthropicClient Client
	if cfg.OpenAIAPIKey != "" {
		openaiClient = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	if cfg.AnthropicAPIKey != "" {
		anthropicClient = NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL)
	}

	var candidates []Candidate
	for _, m := range cfg.Models {
		var client Client
		switch m.Provider {
		case types.ProviderOpenAI:
			client = openaiClient
		case types.ProviderAnthropic:
			client = anthropicClient
		default:
			logger.Warn("unknown model provider", zap.String("provider", string(m.Provider)))
		}
		if client == nil {
			continue
		}
		candidates = append(candidates, Candidate{Client: client, Model: m.Model})
	}
	if len(candidates) == 0 {
		logger.Warn("no language models configured, analysis will run degraded")
	}

	var embedder Embedder
	if cfg.EmbeddingModel != "" && cfg.OpenAIAPIKey != "" {
		embedder = NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	}
	return NewChain(candidates, cfg.Timeout, logger), embedder
}

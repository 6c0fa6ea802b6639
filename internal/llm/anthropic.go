// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

// Anthropic speaks the Anthropic Messages protocol.
type Anthropic struct {
	client *anthropic.Client
}

// NewAnthropic returns a client for apiKey. An empty baseURL uses the
// public API.
func NewAnthropic(apiKey, baseURL string) *Anthropic {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &Anthropic{client: anthropic.NewClient(apiKey, opts...)}
}

// Name returns the provider name.
func (c *Anthropic) Name() string { return "anthropic" }

// Complete sends prompt as a single user message to model.
func (c *Anthropic) Complete(ctx context.Context, model, prompt string, opts Options) (string, error) {
	temperature := opts.Temperature
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
		MaxTokens:   opts.MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, content := range resp.Content {
		b.WriteString(content.GetText())
	}
	return b.String(), nil
}

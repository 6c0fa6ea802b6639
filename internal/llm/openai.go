// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI speaks the OpenAI chat completions protocol. Any compatible
// server (Gemini's OpenAI endpoint, local inference servers) works by
// setting the base URL.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI returns a client for apiKey. An empty baseURL uses OpenAI.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(config)}
}

// Name returns the provider name.
func (c *OpenAI) Name() string { return "openai" }

// Complete sends prompt as a single user message to model.
func (c *OpenAI) Complete(ctx context.Context, model, prompt string, opts Options) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Package openai adapts the OpenAI chat completion API to the
// pipeline.Completer interface.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// CallError is a non-success response from the completion service.
type CallError struct {
	Status  int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.Status, e.Message)
}

type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Client makes chat completion calls against the OpenAI API. It does no
// retrying; a failed call surfaces immediately.
type Client struct {
	api    completionAPI
	logger *zap.Logger
}

// NewClient builds a client for the given API key. An optional base URL
// overrides the default endpoint, which lets self-hosted gateways serve
// the same wire format.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: goopenai.NewClientWithConfig(cfg), logger: logger}
}

func (c *Client) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// Complete sends one system/user prompt pair to the model and returns
// the first choice's content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	c.log().Debug("sending chat completion request",
		zap.String("model", model),
		zap.Int("system_chars", len(systemPrompt)),
		zap.Int("user_chars", len(userPrompt)))

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", &CallError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", &CallError{Status: 200, Message: "response contained no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/bardify/api/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// TextTransformer is the contract the style-translation step depends on: an
// opaque text-to-text transform.
type TextTransformer interface {
	TransformText(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

// LLMClient handles communication with an OpenAI-compatible chat API
type LLMClient struct {
	client *openai.Client
	model  string
}

// NewLLMClient creates a new chat-completion client
func NewLLMClient(cfg *config.OpenAIConfig) *LLMClient {
	if cfg.APIKey == "" {
		return &LLMClient{model: cfg.Model}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &LLMClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// TransformText sends a chat completion request and returns the model output
func (c *LLMClient) TransformText(ctx context.Context, system, user string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("LLM client not configured")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// IsConfigured returns true if the client has valid configuration
func (c *LLMClient) IsConfigured() bool {
	return c.client != nil
}

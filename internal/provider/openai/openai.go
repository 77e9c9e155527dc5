// Package openai adapts OpenAI-compatible chat backends to the provider
// interface.
package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	agent "github.com/codecli/codecli/internal/agent/models"
	provider "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// Client defines the slice of the SDK the adapter needs.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Adapter implements the provider interface for OpenAI-compatible APIs.
type Adapter struct {
	client    Client
	modelName string
	maxTokens int
}

// New creates an Adapter for the given client and model.
func New(client Client, modelName string, maxTokens int) *Adapter {
	return &Adapter{client: client, modelName: modelName, maxTokens: maxTokens}
}

// NewWithKey builds an Adapter backed by the real SDK. A non-empty baseURL
// points the client at a compatible endpoint.
func NewWithKey(apiKey, baseURL, modelName string, maxTokens int) *Adapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return New(openai.NewClientWithConfig(cfg), modelName, maxTokens)
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Model() string { return a.modelName }

// Generate sends the conversation to the chat completion API and
// normalises the reply.
func (a *Adapter) Generate(ctx context.Context, history []agent.Turn, tools []tool.Declaration) (*provider.Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.modelName,
		Messages: toChatMessages(history),
		Tools:    toChatTools(tools),
	}
	if a.maxTokens > 0 {
		req.MaxTokens = a.maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return fromChatResponse(resp)
}

package gemini

import (
	"context"

	"google.golang.org/genai"

	agent "github.com/codecli/codecli/internal/agent/models"
	provider "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// Adapter implements the provider interface for Google Gemini.
type Adapter struct {
	client    Client
	modelName string
	maxTokens int
}

// New creates an Adapter for the given client and model.
func New(client Client, modelName string, maxTokens int) *Adapter {
	return &Adapter{client: client, modelName: modelName, maxTokens: maxTokens}
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) Model() string { return a.modelName }

// Generate sends the conversation to Gemini and normalises the reply.
func (a *Adapter) Generate(ctx context.Context, history []agent.Turn, tools []tool.Declaration) (*provider.Reply, error) {
	contents := toGeminiContents(history)

	config := &genai.GenerateContentConfig{}
	if a.maxTokens > 0 {
		config.MaxOutputTokens = int32(a.maxTokens)
	}
	if len(tools) > 0 {
		config.Tools = toGeminiTools(tools)
	}

	resp, err := a.client.GenerateContent(ctx, a.modelName, contents, config)
	if err != nil {
		return nil, mapError(err)
	}
	return fromGeminiResponse(resp)
}

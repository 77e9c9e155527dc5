package openai

import (
	"context"
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agent "github.com/codecli/codecli/internal/agent/models"
	provider "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

type mockClient struct {
	lastReq  openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	err      error
}

func (m *mockClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastReq = req
	return m.response, m.err
}

func textResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: text,
			},
		}},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
	}
}

func TestGenerateTextReply(t *testing.T) {
	client := &mockClient{response: textResponse("hello")}
	a := New(client, "gpt-4o", 4096)

	reply, err := a.Generate(context.Background(), []agent.Turn{
		{Role: agent.RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.ReplyTypeText, reply.Type)
	assert.Equal(t, "hello", reply.Text)
	assert.Equal(t, 16, reply.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o", client.lastReq.Model)
	assert.Equal(t, 4096, client.lastReq.MaxTokens)
}

func TestGenerateToolCallReply(t *testing.T) {
	client := &mockClient{response: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "run_command",
						Arguments: `{"command":"ls -la"}`,
					},
				}},
			},
		}},
	}}
	a := New(client, "gpt-4o", 0)

	reply, err := a.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.ReplyTypeToolCall, reply.Type)
	require.Len(t, reply.Invocations, 1)
	assert.Equal(t, "call_1", reply.Invocations[0].ID)
	assert.Equal(t, "run_command", reply.Invocations[0].Name)
	assert.Equal(t, "ls -la", reply.Invocations[0].Args["command"])
}

func TestMalformedToolArgumentsIsInvalidResponse(t *testing.T) {
	client := &mockClient{response: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call_1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "run_command", Arguments: "{not json"},
				}},
			},
		}},
	}}
	a := New(client, "gpt-4o", 0)

	_, err := a.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, provider.ErrorCodeInvalidResponse, provider.CodeOf(err))
}

func TestHistoryConversion(t *testing.T) {
	client := &mockClient{response: textResponse("ok")}
	a := New(client, "gpt-4o", 0)

	history := []agent.Turn{
		{Role: agent.RoleSystem, Content: "you are a coding agent"},
		{Role: agent.RoleUser, Content: "list files"},
		{Role: agent.RoleAssistant, Invocations: []agent.ToolInvocation{
			{ID: "call_1", Name: "run_command", Args: map[string]any{"command": "ls"}},
		}},
		{Role: agent.RoleTool, Results: []agent.ToolResult{
			{InvocationID: "call_1", Name: "run_command", Status: agent.StatusSuccess, Content: "main.go"},
		}},
	}
	_, err := a.Generate(context.Background(), history, nil)
	require.NoError(t, err)

	msgs := client.lastReq.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.JSONEq(t, `{"command":"ls"}`, msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Contains(t, msgs[3].Content, "[success]")
}

func TestToolDeclarationsSerialised(t *testing.T) {
	client := &mockClient{response: textResponse("ok")}
	a := New(client, "gpt-4o", 0)

	decls := []tool.Declaration{{
		Name:        "read_file",
		Description: "Read a file",
		Parameters: &tool.Schema{
			Type:       tool.TypeObject,
			Properties: map[string]*tool.Schema{"path": {Type: tool.TypeString}},
			Required:   []string{"path"},
		},
	}}
	_, err := a.Generate(context.Background(), nil, decls)
	require.NoError(t, err)

	require.Len(t, client.lastReq.Tools, 1)
	fn := client.lastReq.Tools[0].Function
	assert.Equal(t, "read_file", fn.Name)
	data, merr := json.Marshal(fn.Parameters)
	require.NoError(t, merr)
	assert.Contains(t, string(data), `"required":["path"]`)
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  provider.ErrorCode
		retryable bool
	}{
		{"rate limited", 429, provider.ErrorCodeRateLimit, true},
		{"server error", 500, provider.ErrorCodeUnavailable, true},
		{"bad key", 401, provider.ErrorCodeAuth, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{err: &openai.APIError{HTTPStatusCode: tt.status, Message: "boom"}}
			a := New(client, "gpt-4o", 0)

			_, err := a.Generate(context.Background(), nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, provider.CodeOf(err))
			assert.Equal(t, tt.retryable, provider.IsRetryable(err))
		})
	}
}

func TestNoChoicesIsInvalidResponse(t *testing.T) {
	client := &mockClient{response: openai.ChatCompletionResponse{}}
	a := New(client, "gpt-4o", 0)

	_, err := a.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, provider.ErrorCodeInvalidResponse, provider.CodeOf(err))
}

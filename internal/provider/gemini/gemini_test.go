package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	agent "github.com/codecli/codecli/internal/agent/models"
	provider "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// mockClient records the last request and returns canned responses.
type mockClient struct {
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
	response     *genai.GenerateContentResponse
	err          error
}

func (m *mockClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.lastModel = model
	m.lastContents = contents
	m.lastConfig = config
	return m.response, m.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{genai.NewPartFromText(text)},
			},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
			TotalTokenCount:      15,
		},
	}
}

func TestGenerateTextReply(t *testing.T) {
	client := &mockClient{response: textResponse("done")}
	a := New(client, "gemini-2.0-flash", 8192)

	reply, err := a.Generate(context.Background(), []agent.Turn{
		{Role: agent.RoleUser, Content: "hello"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.ReplyTypeText, reply.Type)
	assert.Equal(t, "done", reply.Text)
	assert.Equal(t, 15, reply.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.0-flash", client.lastModel)
}

func TestGenerateToolCallReply(t *testing.T) {
	client := &mockClient{response: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						Name: "read_file",
						Args: map[string]any{"path": "main.go"},
					},
				}},
			},
		}},
	}}
	a := New(client, "gemini-2.0-flash", 0)

	reply, err := a.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.ReplyTypeToolCall, reply.Type)
	require.Len(t, reply.Invocations, 1)
	assert.Equal(t, "read_file", reply.Invocations[0].Name)
	assert.Equal(t, "main.go", reply.Invocations[0].Args["path"])
	assert.NotEmpty(t, reply.Invocations[0].ID, "invocations must get generated IDs")
}

func TestGenerateSendsToolDeclarations(t *testing.T) {
	client := &mockClient{response: textResponse("ok")}
	a := New(client, "gemini-2.0-flash", 0)

	decls := []tool.Declaration{{
		Name:        "read_file",
		Description: "Read a file",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path": {Type: tool.TypeString},
			},
			Required: []string{"path"},
		},
	}}
	_, err := a.Generate(context.Background(), nil, decls)
	require.NoError(t, err)

	require.Len(t, client.lastConfig.Tools, 1)
	fds := client.lastConfig.Tools[0].FunctionDeclarations
	require.Len(t, fds, 1)
	assert.Equal(t, "read_file", fds[0].Name)
	assert.Equal(t, genai.TypeString, fds[0].Parameters.Properties["path"].Type)
	assert.Equal(t, []string{"path"}, fds[0].Parameters.Required)
}

func TestHistoryConversion(t *testing.T) {
	client := &mockClient{response: textResponse("ok")}
	a := New(client, "gemini-2.0-flash", 0)

	history := []agent.Turn{
		{Role: agent.RoleUser, Content: "list the files"},
		{Role: agent.RoleAssistant, Invocations: []agent.ToolInvocation{
			{ID: "inv-1", Name: "run_command", Args: map[string]any{"command": "ls"}},
		}},
		{Role: agent.RoleTool, Results: []agent.ToolResult{
			{InvocationID: "inv-1", Name: "run_command", Status: agent.StatusSuccess, Content: "main.go"},
		}},
	}
	_, err := a.Generate(context.Background(), history, nil)
	require.NoError(t, err)

	require.Len(t, client.lastContents, 3)
	assert.Equal(t, "user", client.lastContents[0].Role)
	assert.Equal(t, "model", client.lastContents[1].Role)
	require.NotNil(t, client.lastContents[1].Parts[0].FunctionCall)
	assert.Equal(t, "run_command", client.lastContents[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, client.lastContents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "success", client.lastContents[2].Parts[0].FunctionResponse.Response["status"])
}

func TestEmptyTurnsAreSkipped(t *testing.T) {
	client := &mockClient{response: textResponse("ok")}
	a := New(client, "gemini-2.0-flash", 0)

	_, err := a.Generate(context.Background(), []agent.Turn{
		{Role: agent.RoleUser, Content: "hi"},
		{Role: agent.RoleAssistant},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, client.lastContents, 1)
}

func TestNoCandidatesIsInvalidResponse(t *testing.T) {
	client := &mockClient{response: &genai.GenerateContentResponse{}}
	a := New(client, "gemini-2.0-flash", 0)

	_, err := a.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, provider.ErrorCodeInvalidResponse, provider.CodeOf(err))
}

func TestSafetyBlockIsNotRetryable(t *testing.T) {
	client := &mockClient{response: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonSafety,
			Content:      &genai.Content{},
		}},
	}}
	a := New(client, "gemini-2.0-flash", 0)

	_, err := a.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, provider.ErrorCodeContentBlocked, provider.CodeOf(err))
	assert.False(t, provider.IsRetryable(err))
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantCode  provider.ErrorCode
		retryable bool
	}{
		{"rate limited", 429, provider.ErrorCodeRateLimit, true},
		{"server error", 503, provider.ErrorCodeUnavailable, true},
		{"bad key", 401, provider.ErrorCodeAuth, false},
		{"bad request", 400, provider.ErrorCodeInvalidResponse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{err: &genai.APIError{Code: tt.code, Message: "boom"}}
			a := New(client, "gemini-2.0-flash", 0)

			_, err := a.Generate(context.Background(), nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, provider.CodeOf(err))
			assert.Equal(t, tt.retryable, provider.IsRetryable(err))
		})
	}
}

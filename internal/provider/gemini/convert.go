package gemini

import (
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	agent "github.com/codecli/codecli/internal/agent/models"
	provider "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// toGeminiContents converts conversation turns to Gemini Content format.
func toGeminiContents(history []agent.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		if content := turnToContent(turn); content != nil {
			contents = append(contents, content)
		}
	}
	return contents
}

func turnToContent(turn agent.Turn) *genai.Content {
	role := "user"
	if turn.Role == agent.RoleAssistant {
		role = "model"
	}

	parts := make([]*genai.Part, 0)

	text := turn.Content
	if turn.Role == agent.RoleError && text != "" {
		text = "Error: " + text
	}
	if text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}

	for _, inv := range turn.Invocations {
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				Name: inv.Name,
				Args: inv.Args,
			},
		})
	}

	for _, result := range turn.Results {
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name: result.Name,
				Response: map[string]any{
					"status":  string(result.Status),
					"content": result.Content,
				},
			},
		})
	}

	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}

// toGeminiTools converts tool declarations to Gemini tools.
func toGeminiTools(decls []tool.Declaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}
	fds := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, decl := range decls {
		fd := &genai.FunctionDeclaration{
			Name:        decl.Name,
			Description: decl.Description,
		}
		if decl.Parameters != nil {
			fd.Parameters = toGeminiSchema(decl.Parameters)
		}
		fds = append(fds, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: fds}}
}

func toGeminiSchema(s *tool.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        toGeminiType(s.Type),
		Description: s.Description,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toGeminiSchema(s.Items)
	}
	if len(s.Required) > 0 {
		out.Required = s.Required
	}
	if len(s.Enum) > 0 {
		out.Enum = s.Enum
	}
	return out
}

func toGeminiType(t tool.SchemaType) genai.Type {
	switch t {
	case tool.TypeString:
		return genai.TypeString
	case tool.TypeNumber:
		return genai.TypeNumber
	case tool.TypeInteger:
		return genai.TypeInteger
	case tool.TypeBoolean:
		return genai.TypeBoolean
	case tool.TypeArray:
		return genai.TypeArray
	case tool.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGeminiResponse converts a Gemini response to a normalised reply.
// Gemini does not assign call IDs, so invocations get fresh UUIDs.
func fromGeminiResponse(resp *genai.GenerateContentResponse) (*provider.Reply, error) {
	if len(resp.Candidates) == 0 {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeInvalidResponse,
			Message: "no candidates in response",
		}
	}
	candidate := resp.Candidates[0]

	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeContentBlocked,
			Message: "content blocked by safety filters",
		}
	}
	if candidate.Content == nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeInvalidResponse,
			Message: "candidate has no content",
		}
	}

	reply := &provider.Reply{Usage: usageOf(resp.UsageMetadata)}
	var text string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
		if part.FunctionCall != nil {
			reply.Invocations = append(reply.Invocations, agent.ToolInvocation{
				ID:   uuid.NewString(),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}

	if len(reply.Invocations) > 0 {
		reply.Type = provider.ReplyTypeToolCall
		return reply, nil
	}
	reply.Type = provider.ReplyTypeText
	reply.Text = text
	return reply, nil
}

func usageOf(usage *genai.GenerateContentResponseUsageMetadata) provider.Usage {
	if usage == nil {
		return provider.Usage{}
	}
	return provider.Usage{
		PromptTokens:     int(usage.PromptTokenCount),
		CompletionTokens: int(usage.CandidatesTokenCount),
		TotalTokens:      int(usage.TotalTokenCount),
	}
}

// mapError normalises SDK failures into provider errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*genai.APIError); ok {
		return mapAPIError(apiErr, err)
	}
	return &provider.ProviderError{
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
}

func mapAPIError(apiErr *genai.APIError, err error) error {
	switch apiErr.Code {
	case 401, 403:
		return &provider.ProviderError{
			Code:       provider.ErrorCodeAuth,
			Message:    "authentication failed",
			Underlying: err,
		}
	case 429:
		return &provider.ProviderError{
			Code:       provider.ErrorCodeRateLimit,
			Message:    "rate limit exceeded",
			Underlying: err,
			Retryable:  true,
		}
	case 500, 502, 503, 504:
		return &provider.ProviderError{
			Code:       provider.ErrorCodeUnavailable,
			Message:    "service unavailable",
			Underlying: err,
			Retryable:  true,
		}
	default:
		return &provider.ProviderError{
			Code:       provider.ErrorCodeInvalidResponse,
			Message:    fmt.Sprintf("API error: %s", apiErr.Message),
			Underlying: err,
		}
	}
}

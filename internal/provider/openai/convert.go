package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	agent "github.com/codecli/codecli/internal/agent/models"
	provider "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// toChatMessages converts conversation turns to chat messages. Assistant
// tool invocations map to tool_calls, tool results to one tool message per
// result keyed by the originating call ID.
func toChatMessages(history []agent.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case agent.RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: turn.Content,
			})
		case agent.RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Content,
			}
			for _, inv := range turn.Invocations {
				args, err := json.Marshal(inv.Args)
				if err != nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   inv.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      inv.Name,
						Arguments: string(args),
					},
				})
			}
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
			msgs = append(msgs, msg)
		case agent.RoleTool:
			for _, result := range turn.Results {
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: result.InvocationID,
					Content:    fmt.Sprintf("[%s] %s", result.Status, result.Content),
				})
			}
		case agent.RoleError:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: "Error: " + turn.Content,
			})
		default:
			if turn.Content == "" {
				continue
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Content,
			})
		}
	}
	return msgs
}

func toChatTools(decls []tool.Declaration) []openai.Tool {
	if len(decls) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(decls))
	for _, decl := range decls {
		var params json.RawMessage
		if decl.Parameters != nil {
			if data, err := json.Marshal(decl.Parameters); err == nil {
				params = data
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func fromChatResponse(resp openai.ChatCompletionResponse) (*provider.Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeInvalidResponse,
			Message: "no choices in response",
		}
	}
	msg := resp.Choices[0].Message

	reply := &provider.Reply{
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, call := range msg.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, &provider.ProviderError{
				Code:       provider.ErrorCodeInvalidResponse,
				Message:    fmt.Sprintf("malformed arguments for tool call %s", call.Function.Name),
				Underlying: err,
			}
		}
		reply.Invocations = append(reply.Invocations, agent.ToolInvocation{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		})
	}

	if len(reply.Invocations) > 0 {
		reply.Type = provider.ReplyTypeToolCall
		return reply, nil
	}
	reply.Type = provider.ReplyTypeText
	reply.Text = msg.Content
	return reply, nil
}

// mapError normalises SDK failures into provider errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return &provider.ProviderError{
				Code:       provider.ErrorCodeAuth,
				Message:    "authentication failed",
				Underlying: err,
			}
		case 429:
			retryAfter := 2 * time.Second
			return &provider.ProviderError{
				Code:       provider.ErrorCodeRateLimit,
				Message:    "rate limit exceeded",
				Underlying: err,
				Retryable:  true,
				RetryAfter: &retryAfter,
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
	return &provider.ProviderError{
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
}

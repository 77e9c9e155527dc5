package models

import (
	agent "github.com/codecli/codecli/internal/agent/models"
)

// ReplyType indicates what the model produced.
type ReplyType string

const (
	ReplyTypeText     ReplyType = "text"
	ReplyTypeToolCall ReplyType = "tool_call"
)

// Reply is a provider response normalised to the agent's data model. A
// reply is either final text or a batch of tool invocations, never both.
type Reply struct {
	Type        ReplyType
	Text        string
	Invocations []agent.ToolInvocation
	Usage       Usage
}

// Usage records token accounting for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

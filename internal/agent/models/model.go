package models

import "time"

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// Turn is a single entry in the conversation history.
// The conversation is append-only except for compression and rollback,
// both of which are owned by the conversation manager.
type Turn struct {
	Role      Role
	Content   string
	Tokens    int
	Timestamp time.Time

	// Pinned turns (system instructions, compression summaries) are never
	// summarized away.
	Pinned bool

	// For assistant turns that requested tools.
	Invocations []ToolInvocation

	// For tool turns carrying execution results.
	Results []ToolResult
}

// ToolInvocation is one requested execution of a named tool with concrete
// arguments. Immutable once created.
type ToolInvocation struct {
	ID   string
	Name string
	Args map[string]any
}

// Verdict is the outcome of a security decision.
type Verdict string

const (
	VerdictAllowed           Verdict = "allowed"
	VerdictBlocked           Verdict = "blocked"
	VerdictNeedsConfirmation Verdict = "needs_confirmation"
)

// ReasonCode explains a security verdict.
type ReasonCode string

const (
	ReasonPathTraversal    ReasonCode = "path_traversal"
	ReasonBlockedPattern   ReasonCode = "blocked_pattern"
	ReasonNotAllowlisted   ReasonCode = "not_allowlisted"
	ReasonDangerousCommand ReasonCode = "dangerous_command"
	ReasonUserDenied       ReasonCode = "user_denied"
	ReasonUserCancelled    ReasonCode = "user_cancelled"
	ReasonConfirmAll       ReasonCode = "confirm_all"
	ReasonAllowlisted      ReasonCode = "allowlisted"
	ReasonConfirmationOff  ReasonCode = "confirmation_off"
)

// SecurityDecision is the gate's classification of a single invocation.
// Decisions are never cached across invocations: arguments vary.
type SecurityDecision struct {
	InvocationID string
	Verdict      Verdict
	Reason       ReasonCode

	// MatchedRule is the pattern or rule that produced the verdict, if any.
	MatchedRule string

	// Dangerous marks actions that mutate the workspace or system state.
	Dangerous bool
}

// StatusClass classifies the outcome of a tool execution.
type StatusClass string

const (
	StatusSuccess StatusClass = "success"
	StatusFailure StatusClass = "failure"
	StatusTimeout StatusClass = "timeout"
	StatusDenied  StatusClass = "denied"
)

// ToolResult is the outcome of executing one allowed invocation.
// A Denied result carries no output beyond the marker content.
type ToolResult struct {
	InvocationID string
	Name         string
	Status       StatusClass
	Content      string
	Duration     time.Duration
}

// RunMode gates confirmation behavior globally.
type RunMode string

const (
	// ModeSafe requires confirmation per policy.
	ModeSafe RunMode = "safe"
	// ModeArmed suppresses confirmation for non-dangerous actions only.
	// Dangerous actions are still confirmed; mode alone never auto-approves
	// them.
	ModeArmed RunMode = "armed"
)

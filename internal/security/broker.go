package security

import (
	"context"

	"github.com/codecli/codecli/internal/agent/models"
)

// Decision is the user's answer to a confirmation request.
type Decision string

const (
	DecisionApprove       Decision = "approve"
	DecisionApproveAlways Decision = "approve_always"
	DecisionDeny          Decision = "deny"
)

// ConfirmationRequest summarizes a pending decision for the user.
type ConfirmationRequest struct {
	Invocation models.ToolInvocation

	// Command is the shell command string, when the invocation is one.
	Command string

	// Dangerous is the gate's danger classification.
	Dangerous bool

	// Reason explains why confirmation is required.
	Reason models.ReasonCode
}

// Broker resolves confirmation round-trips. Implementations live outside
// the core (the UI); Confirm blocks until the user answers or ctx is
// cancelled. Cancellation must return ctx.Err().
type Broker interface {
	Confirm(ctx context.Context, req ConfirmationRequest) (Decision, error)
}

package agent

import (
	"context"

	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/conversation"
	providermodels "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/security"
	"github.com/codecli/codecli/internal/tool"
)

// Provider is the model backend the loop talks to each iteration.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, history []models.Turn, tools []tool.Declaration) (*providermodels.Reply, error)
}

// Conversation is the slice of the context manager the loop drives.
type Conversation interface {
	Append(turn models.Turn) error
	History() []models.Turn
	Checkpoint(snapshotRef string) conversation.Checkpoint
}

// Gate decides whether an invocation may run.
type Gate interface {
	Decide(inv models.ToolInvocation) models.SecurityDecision
	AllowAlways(root string)
}

// Executor resolves and runs tool invocations.
type Executor interface {
	Lookup(name string) (tool.Tool, error)
	Declarations() []tool.Declaration
	MutatingTools() map[string]bool
	Execute(ctx context.Context, inv models.ToolInvocation) (models.ToolResult, error)
}

// Snapshotter captures an opaque workspace snapshot reference for
// checkpoints.
type Snapshotter interface {
	Snapshot(message string) (string, error)
}

// Broker resolves confirmation round-trips with the user.
type Broker = security.Broker

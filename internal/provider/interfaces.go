// Package provider abstracts the model backends the agent can talk to.
package provider

import (
	"context"

	agent "github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// Adapter is the interface to a language model backend. Generate sends the
// conversation history plus the available tool declarations and returns
// the model's next reply.
type Adapter interface {
	Name() string
	Model() string
	Generate(ctx context.Context, history []agent.Turn, tools []tool.Declaration) (*models.Reply, error)
}

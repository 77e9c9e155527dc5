// Package registry tracks every tool known to the agent, built-in and
// plugin alike, and executes allowed invocations. Disabled plugins stay
// visible to lookups so a request for one fails closed before any security
// evaluation happens.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/observability"
	"github.com/codecli/codecli/internal/tool"
)

// Registry maps tool names to their implementations.
type Registry struct {
	tools    map[string]tool.Tool
	disabled map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]tool.Tool),
		disabled: make(map[string]string),
	}
}

// Register adds a tool under its declared name.
func (r *Registry) Register(t tool.Tool) error {
	name := t.Declaration().Name
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	if _, ok := r.disabled[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	return nil
}

// RegisterDisabled records a tool name that exists but must not run,
// typically an untrusted or malformed plugin.
func (r *Registry) RegisterDisabled(name, reason string) {
	if _, ok := r.tools[name]; ok {
		return
	}
	r.disabled[name] = reason
}

// Lookup resolves a tool by name. A disabled plugin returns
// PluginDisabledError so callers reject the invocation without ever
// reaching the security gate.
func (r *Registry) Lookup(name string) (tool.Tool, error) {
	if reason, ok := r.disabled[name]; ok {
		return nil, &PluginDisabledError{Name: name, Reason: reason}
	}
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Declarations returns the provider-facing declarations of all enabled
// tools, sorted by name for deterministic prompts.
func (r *Registry) Declarations() []tool.Declaration {
	decls := make([]tool.Declaration, 0, len(r.tools))
	for _, t := range r.tools {
		decls = append(decls, t.Declaration())
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}

// MutatingTools reports which enabled tools mutate the workspace. The
// security gate uses this to decide which invocations need confirmation.
func (r *Registry) MutatingTools() map[string]bool {
	m := make(map[string]bool, len(r.tools))
	for name, t := range r.tools {
		m[name] = t.Mutating()
	}
	return m
}

// Execute runs an already-allowed invocation and classifies the outcome.
// Timeouts map to a distinct status so the loop can tell a slow command
// from a broken one. Lookup failures are returned as errors; everything
// the tool itself reports lands in the result.
func (r *Registry) Execute(ctx context.Context, inv models.ToolInvocation) (models.ToolResult, error) {
	t, err := r.Lookup(inv.Name)
	if err != nil {
		return models.ToolResult{}, err
	}

	start := time.Now()
	res, err := t.Execute(ctx, inv.Args)
	elapsed := time.Since(start)

	result := models.ToolResult{
		InvocationID: inv.ID,
		Name:         inv.Name,
		Content:      res.Content,
		Duration:     elapsed,
	}
	switch {
	case errors.Is(err, tool.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		result.Status = models.StatusTimeout
		if result.Content == "" {
			result.Content = err.Error()
		}
	case err != nil:
		result.Status = models.StatusFailure
		result.Content = "Error: " + err.Error()
	case res.Failed:
		result.Status = models.StatusFailure
	default:
		result.Status = models.StatusSuccess
	}

	observability.RecordToolExecution(inv.Name, string(result.Status), elapsed.Seconds())
	return result, nil
}

// Package shell implements the run_command tool. Commands are executed
// directly from an argv slice, never through a shell interpreter, with the
// workspace root as the working directory.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codecli/codecli/internal/config"
	"github.com/codecli/codecli/internal/tool"
)

type runRequest struct {
	Command string `json:"command"`
}

func (r *runRequest) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return ErrEmptyCommand
	}
	return nil
}

// NewRunCommandTool returns the run_command tool bound to the workspace
// root. Timeout and output limits come from the shell configuration.
func NewRunCommandTool(cfg config.ShellConfig, workspaceRoot string) tool.Tool {
	decl := tool.Declaration{
		Name:        "run_command",
		Description: "Run a command in the workspace. No shell interpretation; pipes and redirection are not available.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"command": {Type: tool.TypeString, Description: "The command line to run, e.g. \"go test ./...\""},
			},
			Required: []string{"command"},
		},
	}
	t := &runCommandTool{
		executor:      NewExecutor(int(cfg.MaxOutputBytes)),
		timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		workspaceRoot: workspaceRoot,
	}
	return tool.NewAdapter(decl, true, t.run)
}

type runCommandTool struct {
	executor      *Executor
	timeout       time.Duration
	workspaceRoot string
}

func (t *runCommandTool) run(ctx context.Context, req runRequest) (tool.Result, error) {
	argv, err := Split(req.Command)
	if err != nil {
		return tool.Result{}, &tool.InvalidArgsError{Tool: "run_command", Cause: err}
	}

	res, err := t.executor.Run(ctx, argv, t.workspaceRoot, t.timeout)
	if err != nil && res == nil {
		return tool.Result{}, err
	}

	content := formatOutput(res)
	switch {
	case err == nil:
		return tool.Result{Content: content}, nil
	case errors.Is(err, tool.ErrTimeout):
		return tool.Result{Content: content}, fmt.Errorf("%w after %s", tool.ErrTimeout, t.timeout)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return tool.Result{Content: content}, err
	default:
		// Non-zero exit: the command ran to completion but failed.
		content = fmt.Sprintf("%s\nCommand failed (exit %d)", content, res.ExitCode)
		return tool.Result{Content: content, Failed: true}, nil
	}
}

func formatOutput(res *ExecResult) string {
	var b strings.Builder
	if res.Stdout != "" {
		b.WriteString("STDOUT:\n")
		b.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("STDERR:\n")
		b.WriteString(res.Stderr)
	}
	if b.Len() == 0 {
		b.WriteString("(no output)")
	}
	if res.Truncated {
		b.WriteString("\n[output truncated]")
	}
	return b.String()
}

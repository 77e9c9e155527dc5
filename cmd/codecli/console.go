package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/codecli/codecli/internal/security"
)

var (
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// console owns the terminal line editor. It serves both the interactive
// goal prompt and confirmation round-trips, so all raw-mode input goes
// through one liner state.
type console struct {
	line *liner.State
	out  io.Writer
}

func newConsole(out io.Writer) *console {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &console{line: line, out: out}
}

func (c *console) Close() error { return c.line.Close() }

// ReadGoal prompts for the next user goal. io.EOF and liner's abort error
// both mean the session is over.
func (c *console) ReadGoal() (string, error) {
	goal, err := c.line.Prompt("> ")
	if err != nil {
		return "", err
	}
	goal = strings.TrimSpace(goal)
	if goal != "" {
		c.line.AppendHistory(goal)
	}
	return goal, nil
}

// Confirm presents a pending invocation and blocks for the user's answer.
// An unrecognized or empty answer denies; interrupting the prompt cancels
// the run.
func (c *console) Confirm(ctx context.Context, req security.ConfirmationRequest) (security.Decision, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	label := req.Invocation.Name
	if req.Command != "" {
		label = req.Command
	}
	header := confirmStyle.Render("confirm: " + label)
	if req.Dangerous {
		header = dangerStyle.Render("confirm (dangerous): " + label)
	}
	fmt.Fprintln(c.out, header)
	fmt.Fprintf(c.out, "  reason: %s\n", req.Reason)

	answer, err := c.line.Prompt("  [y]es / [a]lways / [N]o: ")
	if err != nil {
		if err == liner.ErrPromptAborted {
			return "", context.Canceled
		}
		return "", err
	}
	return parseDecision(answer), nil
}

// parseDecision maps a typed answer to a decision. Deny is the default:
// anything unrecognized fails closed.
func parseDecision(answer string) security.Decision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return security.DecisionApprove
	case "a", "always":
		return security.DecisionApproveAlways
	default:
		return security.DecisionDeny
	}
}

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/codecli/codecli/internal/event"
)

var (
	faintStyle   = lipgloss.NewStyle().Faint(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	deniedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// renderer turns session events into terminal output. Confirmation events
// are skipped: the console prints those itself, inline with the prompt.
type renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

func newRenderer(out io.Writer) *renderer {
	markdown, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		markdown = nil
	}
	return &renderer{out: out, markdown: markdown}
}

// Run drains the event channel until the bus closes it.
func (r *renderer) Run(events <-chan event.Event) {
	for ev := range events {
		if line := r.Line(ev); line != "" {
			fmt.Fprintln(r.out, line)
		}
	}
}

// Line formats one event, or returns "" for events with no console output.
func (r *renderer) Line(ev event.Event) string {
	switch ev.Kind {
	case event.KindToolRequested:
		tool, _ := ev.Payload["tool"].(string)
		return faintStyle.Render("-> " + tool)
	case event.KindToolResult:
		tool, _ := ev.Payload["tool"].(string)
		status, _ := ev.Payload["status"].(string)
		return statusStyle(status).Render(fmt.Sprintf("<- %s %s", tool, status))
	case event.KindCheckpointCreated:
		return faintStyle.Render("checkpoint saved")
	case event.KindContextCompressed:
		return faintStyle.Render("context compressed")
	case event.KindError:
		msg, _ := ev.Payload["error"].(string)
		if recoverable, _ := ev.Payload["recoverable"].(bool); recoverable {
			return faintStyle.Render("retrying: " + msg)
		}
		return failureStyle.Render("error: " + msg)
	default:
		return ""
	}
}

// Answer renders the final assistant text as markdown, falling back to the
// raw text when no terminal renderer is available.
func (r *renderer) Answer(text string) {
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(text); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintln(r.out, text)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "success":
		return successStyle
	case "denied":
		return deniedStyle
	case "failure", "timeout":
		return failureStyle
	default:
		return faintStyle
	}
}

package shell

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrEmptyCommand      = errors.New("command is required")
	ErrUnterminatedQuote = errors.New("unterminated quote in command")
)

// CommandError wraps a failure to launch or run a command.
type CommandError struct {
	Cmd   string
	Stage string
	Cause error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed during %s: %v", e.Cmd, e.Stage, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Cause }

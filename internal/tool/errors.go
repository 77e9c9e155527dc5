package tool

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a tool exceeds its execution deadline. The
// registry maps it to a timeout status rather than a plain failure.
var ErrTimeout = errors.New("tool execution timed out")

// InvalidArgsError reports arguments that could not be decoded into the
// tool's typed request, or that failed the request's own validation.
type InvalidArgsError struct {
	Tool  string
	Cause error
}

func (e *InvalidArgsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Cause)
}

func (e *InvalidArgsError) Unwrap() error { return e.Cause }

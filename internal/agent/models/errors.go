package models

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a failure class in the run taxonomy.
type ErrorKind string

const (
	KindProviderUnavailable    ErrorKind = "provider_unavailable"
	KindInvalidResponse        ErrorKind = "invalid_response"
	KindPathTraversal          ErrorKind = "path_traversal"
	KindBlockedPattern         ErrorKind = "blocked_pattern"
	KindNotAllowlisted         ErrorKind = "not_allowlisted"
	KindUserDenied             ErrorKind = "user_denied"
	KindPluginDisabled         ErrorKind = "plugin_disabled"
	KindToolTimeout            ErrorKind = "tool_timeout"
	KindToolExecutionFailure   ErrorKind = "tool_execution_failure"
	KindInvalidCheckpoint      ErrorKind = "invalid_checkpoint"
	KindIterationLimitExceeded ErrorKind = "iteration_limit_exceeded"
	KindUserCancelled          ErrorKind = "user_cancelled"
	KindContextOverflow        ErrorKind = "context_overflow"
)

// RunError carries an ErrorKind alongside the underlying cause.
// Security and tool errors are recoverable (recorded as turns, run
// continues); provider and loop-level errors are fatal to the run.
type RunError struct {
	Kind  ErrorKind
	Cause error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *RunError) Unwrap() error { return e.Cause }

// NewRunError wraps cause with a kind.
func NewRunError(kind ErrorKind, cause error) *RunError {
	return &RunError{Kind: kind, Cause: cause}
}

// KindOf extracts the ErrorKind from err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsFatal reports whether err ends the run. Recoverable errors are recorded
// in the conversation and returned to the model instead.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindProviderUnavailable, KindIterationLimitExceeded, KindUserCancelled,
		KindContextOverflow, KindInvalidCheckpoint:
		return true
	}
	return false
}

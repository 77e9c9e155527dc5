package security

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkspaceRootNotSet indicates the resolver was created without a root.
	ErrWorkspaceRootNotSet = errors.New("workspace root not set")

	// ErrOutsideWorkspace indicates a path escapes the workspace boundary.
	ErrOutsideWorkspace = errors.New("path is outside the workspace")

	// ErrNotADirectory indicates the workspace root is not a directory.
	ErrNotADirectory = errors.New("workspace root is not a directory")
)

// WorkspaceRootError is returned when the workspace root cannot be
// canonicalised.
type WorkspaceRootError struct {
	Root  string
	Cause error
}

func (e *WorkspaceRootError) Error() string {
	return fmt.Sprintf("invalid workspace root %s: %v", e.Root, e.Cause)
}

func (e *WorkspaceRootError) Unwrap() error { return e.Cause }

package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver validates filesystem paths against a workspace boundary.
type PathResolver struct {
	workspaceRoot string
}

// NewPathResolver creates a resolver for the given canonical workspace root.
func NewPathResolver(workspaceRoot string) *PathResolver {
	return &PathResolver{workspaceRoot: workspaceRoot}
}

// CanonicaliseRoot canonicalises a workspace root path by making it absolute
// and resolving symlinks. Returns an error if the path doesn't exist or
// isn't a directory.
func CanonicaliseRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &WorkspaceRootError{Root: root, Cause: err}
	}

	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", &WorkspaceRootError{Root: absRoot, Cause: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &WorkspaceRootError{Root: resolved, Cause: err}
	}
	if !info.IsDir() {
		return "", &WorkspaceRootError{Root: resolved, Cause: fmt.Errorf("%w: %s", ErrNotADirectory, resolved)}
	}
	return resolved, nil
}

// Contain canonicalises a path (relative segments collapsed, symlinks
// resolved through the deepest existing ancestor) and validates that the
// result stays within the workspace root. The path itself does not need to
// exist yet: a path being written for the first time resolves through its
// parent.
func (r *PathResolver) Contain(path string) (string, error) {
	if r.workspaceRoot == "" {
		return "", ErrWorkspaceRootNotSet
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(r.workspaceRoot, path))
	}

	resolved, err := resolveExistingPrefix(abs)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(resolved, r.workspaceRoot+string(filepath.Separator)) && resolved != r.workspaceRoot {
		return "", ErrOutsideWorkspace
	}
	return resolved, nil
}

// resolveExistingPrefix resolves symlinks in the longest existing prefix of
// abs and rejoins the non-existing remainder. This way a symlink pointing
// out of the workspace is caught even when the final component is new.
func resolveExistingPrefix(abs string) (string, error) {
	remainder := ""
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Clean(filepath.Join(resolved, remainder)), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Hit the filesystem root without finding anything.
			return abs, nil
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

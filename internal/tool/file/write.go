package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codecli/codecli/internal/tool"
)

type writeRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (r *writeRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	return nil
}

// NewWriteTool returns the write_file tool. The file is created together
// with any missing parent directories, and replaced atomically when it
// already exists.
func NewWriteTool(resolver pathResolver) tool.Tool {
	decl := tool.Declaration{
		Name:        "write_file",
		Description: "Create or overwrite a file in the workspace.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":    {Type: tool.TypeString, Description: "Path to the file, relative to the workspace root"},
				"content": {Type: tool.TypeString, Description: "Full content to write"},
			},
			Required: []string{"path", "content"},
		},
	}
	t := &writeTool{resolver: resolver}
	return tool.NewAdapter(decl, true, t.run)
}

type writeTool struct {
	resolver pathResolver
}

func (t *writeTool) run(ctx context.Context, req writeRequest) (tool.Result, error) {
	abs, err := t.resolver.Contain(req.Path)
	if err != nil {
		return tool.Result{}, err
	}

	perm := os.FileMode(0o644)
	existed := false
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return failure("path is a directory: %s", req.Path)
		}
		perm = info.Mode().Perm()
		existed = true
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return tool.Result{}, err
	}
	if err := writeAtomic(abs, []byte(req.Content), perm); err != nil {
		return tool.Result{}, err
	}

	verb := "Created"
	if existed {
		verb = "Overwrote"
	}
	return tool.Result{Content: fmt.Sprintf("%s %s (%d bytes)", verb, req.Path, len(req.Content))}, nil
}

// writeAtomic writes content to a temporary file in the target directory
// and renames it into place, so readers never observe a partial write.
func writeAtomic(path string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

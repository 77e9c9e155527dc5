package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/codecli/codecli/internal/tool"
)

type readRequest struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

func (r *readRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if r.Offset < 0 {
		return ErrNegativeOffset
	}
	if r.Limit < 0 {
		return ErrNegativeLimit
	}
	return nil
}

// NewReadTool returns the read_file tool. Offset and limit select a line
// window; offset is 1-based and zero means the start of the file.
func NewReadTool(resolver pathResolver) tool.Tool {
	decl := tool.Declaration{
		Name:        "read_file",
		Description: "Read a text file from the workspace, optionally a line range.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":   {Type: tool.TypeString, Description: "Path to the file, relative to the workspace root"},
				"offset": {Type: tool.TypeInteger, Description: "1-based line to start reading from"},
				"limit":  {Type: tool.TypeInteger, Description: "Maximum number of lines to return"},
			},
			Required: []string{"path"},
		},
	}
	t := &readTool{resolver: resolver}
	return tool.NewAdapter(decl, false, t.run)
}

type readTool struct {
	resolver pathResolver
}

func (t *readTool) run(ctx context.Context, req readRequest) (tool.Result, error) {
	abs, err := t.resolver.Contain(req.Path)
	if err != nil {
		return tool.Result{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return failure("file does not exist: %s", req.Path)
		}
		return tool.Result{}, err
	}
	if info.IsDir() {
		return failure("path is a directory: %s", req.Path)
	}
	if info.Size() > maxFileSize {
		return failure("file too large: %s (%d bytes, limit %d)", req.Path, info.Size(), int64(maxFileSize))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return tool.Result{}, err
	}
	if isBinary(data) {
		return failure("file appears to be binary: %s", req.Path)
	}

	content := string(data)
	if req.Offset > 0 || req.Limit > 0 {
		lines := strings.Split(content, "\n")
		start := 0
		if req.Offset > 0 {
			start = req.Offset - 1
		}
		if start >= len(lines) {
			return failure("offset %d is past the end of %s (%d lines)", req.Offset, req.Path, len(lines))
		}
		end := len(lines)
		if req.Limit > 0 && start+req.Limit < end {
			end = start + req.Limit
		}
		content = strings.Join(lines[start:end], "\n")
	}

	if content == "" {
		content = fmt.Sprintf("(empty file: %s)", req.Path)
	}
	return tool.Result{Content: content}, nil
}

package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/codecli/codecli/internal/tool"
)

type editRequest struct {
	Path      string `json:"path"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

func (r *editRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if r.OldString == "" {
		return ErrOldStringRequired
	}
	if r.OldString == r.NewString {
		return ErrNoChange
	}
	return nil
}

// NewEditTool returns the edit_file tool. old_string must match exactly
// one location in the file; ambiguous or missing matches fail without
// touching the file.
func NewEditTool(resolver pathResolver) tool.Tool {
	decl := tool.Declaration{
		Name:        "edit_file",
		Description: "Replace an exact, unique snippet in an existing file.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":       {Type: tool.TypeString, Description: "Path to the file, relative to the workspace root"},
				"old_string": {Type: tool.TypeString, Description: "Exact text to replace; must occur exactly once"},
				"new_string": {Type: tool.TypeString, Description: "Replacement text"},
			},
			Required: []string{"path", "old_string", "new_string"},
		},
	}
	t := &editTool{resolver: resolver}
	return tool.NewAdapter(decl, true, t.run)
}

type editTool struct {
	resolver pathResolver
}

func (t *editTool) run(ctx context.Context, req editRequest) (tool.Result, error) {
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
	oldContent := string(data)

	switch count := strings.Count(oldContent, req.OldString); count {
	case 0:
		return failure("old_string not found in %s", req.Path)
	case 1:
	default:
		return failure("old_string occurs %d times in %s; include more context to make it unique", count, req.Path)
	}

	newContent := strings.Replace(oldContent, req.OldString, req.NewString, 1)
	if err := writeAtomic(abs, []byte(newContent), info.Mode().Perm()); err != nil {
		return tool.Result{}, err
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + filepath.Base(abs),
		ToFile:   "b/" + filepath.Base(abs),
		Context:  3,
	})
	return tool.Result{Content: "Edited " + req.Path + "\n" + diff}, nil
}

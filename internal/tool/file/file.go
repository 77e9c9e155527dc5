// Package file implements the built-in workspace file tools: read_file,
// write_file and edit_file. Every path argument is resolved through the
// workspace path resolver before any filesystem access.
package file

import (
	"bytes"
	"fmt"

	"github.com/codecli/codecli/internal/tool"
)

// pathResolver canonicalises a model-supplied path and rejects anything
// that escapes the workspace root.
type pathResolver interface {
	Contain(path string) (string, error)
}

// maxFileSize bounds the content a single read or edit may handle.
const maxFileSize = 10 << 20

// binarySniffLen is how many leading bytes are inspected for binary content.
const binarySniffLen = 8192

func isBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// failure reports a domain-level problem (missing file, bad snippet) as a
// failed result rather than an execution error, so the model can read the
// message and retry with corrected arguments.
func failure(format string, args ...any) (tool.Result, error) {
	return tool.Result{Content: fmt.Sprintf(format, args...), Failed: true}, nil
}

package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/blueman82/go-counsel/internal/errs"
)

// MaxFileReadBytes is the hard cap on file-read.
const MaxFileReadBytes = 1 << 20 // 1 MiB

// FileReadTool reads a UTF-8 text file under the sandbox directory.
// Text only: no base64/binary mode and no line windowing.
type FileReadTool struct{}

func NewFileReadTool() *FileReadTool { return &FileReadTool{} }

func (t *FileReadTool) Name() string { return "file-read" }

func (t *FileReadTool) Schema() Schema {
	return objectSchema([]string{"path"}, map[string]Schema{
		"path": stringSchema(),
	})
}

func (t *FileReadTool) Execute(_ context.Context, workingDirectory string, args map[string]interface{}) (interface{}, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, errs.Validation("path is required")
	}

	base := workingDirectory
	if base == "" {
		base = "."
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, path)
	}
	resolved = filepath.Clean(resolved)
	absBase, errBase := filepath.Abs(base)
	absResolved, errResolved := filepath.Abs(resolved)
	if errBase != nil || errResolved != nil {
		return nil, errs.Validation("cannot resolve %s", path)
	}
	if rel, err := filepath.Rel(absBase, absResolved); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, errs.Validation("%s is outside the working directory", path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, errs.Tool(err, "stat %s", path)
	}
	if info.IsDir() {
		return nil, errs.Validation("%s is a directory", path)
	}
	if info.Size() > MaxFileReadBytes {
		return nil, errs.Validation("%s exceeds %d bytes", path, MaxFileReadBytes)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, errs.Tool(err, "read %s", path)
	}
	if !utf8.Valid(data) {
		return nil, errs.Validation("%s is not valid UTF-8", path)
	}

	return map[string]interface{}{
		"path":      path,
		"content":   string(data),
		"size_bytes": info.Size(),
	}, nil
}

package tools

import (
	"context"
	"path/filepath"

	"github.com/blueman82/go-counsel/internal/errs"
)

// MaxFileListEntries caps file-list results.
const MaxFileListEntries = 200

// FileListTool globs files under a root directory.
type FileListTool struct{}

func NewFileListTool() *FileListTool { return &FileListTool{} }

func (t *FileListTool) Name() string { return "file-list" }

func (t *FileListTool) Schema() Schema {
	return objectSchema([]string{"pattern"}, map[string]Schema{
		"pattern": stringSchema(),
		"path":    stringSchema(),
	})
}

func (t *FileListTool) Execute(_ context.Context, workingDirectory string, args map[string]interface{}) (interface{}, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, errs.Validation("pattern is required")
	}
	listPath, _ := args["path"].(string)
	root := workingDirectory
	if root == "" {
		root = "."
	}
	if listPath != "" {
		root = filepath.Join(root, listPath)
	}

	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, errs.Validation("invalid glob pattern: %v", err)
	}
	if len(matches) > MaxFileListEntries {
		matches = matches[:MaxFileListEntries]
	}
	return matches, nil
}

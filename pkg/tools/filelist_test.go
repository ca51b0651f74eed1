package tools

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileListToolMatchesGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("not go"), 0o600))

	tool := NewFileListTool()
	result, err := tool.Execute(context.Background(), dir, map[string]interface{}{"pattern": "*.go"})
	require.NoError(t, err)

	matches, ok := result.([]string)
	require.True(t, ok)
	assert.Len(t, matches, 2)
}

func TestFileListToolRequiresPattern(t *testing.T) {
	tool := NewFileListTool()
	_, err := tool.Execute(context.Background(), t.TempDir(), map[string]interface{}{})
	require.Error(t, err)
}

func TestFileListToolCapsAtMaxEntries(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < MaxFileListEntries+10; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+strconv.Itoa(i)+".txt"), []byte("x"), 0o600))
	}

	tool := NewFileListTool()
	result, err := tool.Execute(context.Background(), dir, map[string]interface{}{"pattern": "*.txt"})
	require.NoError(t, err)

	matches, ok := result.([]string)
	require.True(t, ok)
	assert.Len(t, matches, MaxFileListEntries)
}

func TestFileListToolScopesToSubPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.go"), []byte("package sub"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.go"), []byte("package top"), 0o600))

	tool := NewFileListTool()
	result, err := tool.Execute(context.Background(), dir, map[string]interface{}{"pattern": "*.go", "path": "sub"})
	require.NoError(t, err)

	matches, ok := result.([]string)
	require.True(t, ok)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0], "nested.go")
}

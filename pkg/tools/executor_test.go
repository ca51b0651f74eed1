package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestsIgnoresInvalidAndUnknown(t *testing.T) {
	e := NewExecutor(NewFileReadTool())
	response := `I will check the file.
TOOL_REQUEST: {"name": "file-read", "arguments": {"path": "x.go"}}
TOOL_REQUEST: not json at all
TOOL_REQUEST: {"name": "nonexistent-tool", "arguments": {}}
done.`

	reqs := e.ParseRequests(response)
	require.Len(t, reqs, 1)
	assert.Equal(t, "file-read", reqs[0].Name)
	assert.Equal(t, "x.go", reqs[0].Arguments["path"])
}

func TestParseRequestsHandlesBracesInStrings(t *testing.T) {
	e := NewExecutor(NewRunCommandTool())
	response := `TOOL_REQUEST: {"name": "run-command", "arguments": {"command": "echo", "args": ["{not a brace bug}"]}} trailing junk`

	reqs := e.ParseRequests(response)
	require.Len(t, reqs, 1)
	args, ok := reqs[0].Arguments["args"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "{not a brace bug}", args[0])
}

func TestExecutorFileReadSandboxed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o600))

	e := NewExecutor(NewFileReadTool())
	result := e.Execute(context.Background(), Request{
		Name:      "file-read",
		Arguments: map[string]interface{}{"path": "hello.txt"},
	}, dir)

	require.True(t, result.Success)
	out, ok := result.Output.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hi", out["content"])
}

func TestExecutorRestoresWorkingDirectoryOnFailure(t *testing.T) {
	before, err := os.Getwd()
	require.NoError(t, err)

	e := NewExecutor(NewFileReadTool())
	result := e.Execute(context.Background(), Request{
		Name:      "file-read",
		Arguments: map[string]interface{}{"path": "does-not-exist.txt"},
	}, t.TempDir())

	assert.False(t, result.Success)
	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExecutorUnknownTool(t *testing.T) {
	e := NewExecutor()
	result := e.Execute(context.Background(), Request{Name: "file-read"}, "")
	assert.False(t, result.Success)
	assert.Equal(t, "unknown tool", result.Error)
}

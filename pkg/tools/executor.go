package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"go.uber.org/zap"
)

// Marker is the in-response line prefix that introduces a tool call.
const Marker = "TOOL_REQUEST:"

// Request is one parsed tool invocation.
type Request struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Result is what every tool execution produces, regardless of outcome.
type Result struct {
	ToolName string      `json:"tool_name"`
	Success  bool        `json:"success"`
	Output   interface{} `json:"output,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Tool is a single whitelisted, read-only capability.
type Tool interface {
	Name() string
	Schema() Schema
	Execute(ctx context.Context, workingDirectory string, args map[string]interface{}) (interface{}, error)
}

// Executor parses TOOL_REQUEST markers and dispatches to registered
// tools, sandboxing execution to a configurable working directory.
type Executor struct {
	tools map[string]Tool
	mu    sync.Mutex // serializes os.Chdir, matching the engine's single-writer sequencing
	log   *zap.Logger
}

func NewExecutor(registered ...Tool) *Executor {
	e := &Executor{tools: make(map[string]Tool, len(registered)), log: log.Component("tools.executor")}
	for _, t := range registered {
		e.tools[t.Name()] = t
	}
	return e
}

// ParseRequests scans response line by line for TOOL_REQUEST markers.
// Each marker line is decoded with json.Decoder starting at the first
// '{', so braces embedded in string values are handled correctly (a
// regex that counts braces naively would not) and trailing text after
// the JSON value is simply ignored rather than breaking the parse.
func (e *Executor) ParseRequests(response string) []Request {
	var out []Request
	sc := bufio.NewScanner(strings.NewReader(response))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		idx := strings.Index(line, Marker)
		if idx == -1 {
			continue
		}
		rest := line[idx+len(Marker):]
		brace := strings.IndexByte(rest, '{')
		if brace == -1 {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(rest[brace:]))
		var req Request
		if err := dec.Decode(&req); err != nil {
			continue // invalid JSON is silently ignored
		}
		if req.Name == "" {
			continue
		}
		if _, known := e.tools[req.Name]; !known {
			continue // unknown tool names are silently ignored
		}
		out = append(out, req)
	}
	return out
}

// Execute runs one tool request, sandboxed to workingDirectory. It
// switches the process working directory around the call and restores
// it on every exit path, including panics recovered from a faulty tool
// implementation.
func (e *Executor) Execute(ctx context.Context, req Request, workingDirectory string) Result {
	tool, ok := e.tools[req.Name]
	if !ok {
		return Result{ToolName: req.Name, Success: false, Error: "unknown tool"}
	}

	if err := tool.Schema().Validate(req.Arguments); err != nil {
		return Result{ToolName: req.Name, Success: false, Error: err.Error()}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prevDir, restoreErr := os.Getwd()
	if workingDirectory != "" {
		if err := os.Chdir(workingDirectory); err != nil {
			return Result{ToolName: req.Name, Success: false, Error: errs.Tool(err, "chdir").Error()}
		}
		defer func() {
			if restoreErr == nil {
				_ = os.Chdir(prevDir)
			}
		}()
	}

	result, err := e.runSafely(ctx, tool, workingDirectory, req.Arguments)
	if err != nil {
		e.log.Warn("tool execution failed", zap.String("tool", req.Name), zap.Error(err))
		return Result{ToolName: req.Name, Success: false, Error: err.Error()}
	}
	return Result{ToolName: req.Name, Success: true, Output: result}
}

// runSafely converts panics raised by a tool implementation into a
// failed result instead of crashing the executor.
func (e *Executor) runSafely(ctx context.Context, tool Tool, workingDirectory string, args map[string]interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Tool(nil, "tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, workingDirectory, args)
}

// ExecuteAll runs every request sequentially within workingDirectory,
// matching the engine's per-participant sequential tool execution.
func (e *Executor) ExecuteAll(ctx context.Context, reqs []Request, workingDirectory string) []Result {
	out := make([]Result, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, e.Execute(ctx, r, workingDirectory))
	}
	return out
}

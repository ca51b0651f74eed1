package deliberation

import (
	"context"

	"github.com/blueman82/go-counsel/pkg/tools"
)

// ToolActivity is one tool call a participant's response triggered,
// kept for the transcript and for caller-facing observability; tool
// results are not fed back into the round that produced them.
type ToolActivity struct {
	Request tools.Request
	Result  tools.Result
}

// runTools parses and sequentially executes every TOOL_REQUEST marker
// in response within workingDirectory. A nil executor (no tools
// configured) is a no-op.
func runTools(ctx context.Context, executor *tools.Executor, response string, workingDirectory string) []ToolActivity {
	if executor == nil {
		return nil
	}
	requests := executor.ParseRequests(response)
	if len(requests) == 0 {
		return nil
	}
	out := make([]ToolActivity, 0, len(requests))
	for _, req := range requests {
		out = append(out, ToolActivity{Request: req, Result: executor.Execute(ctx, req, workingDirectory)})
	}
	return out
}

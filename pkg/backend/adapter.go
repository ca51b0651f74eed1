// Package backend implements the uniform backend-adapter contract over
// subprocess CLI tools and HTTP chat-completion endpoints, with
// activity-based timeouts, transient-error retry, and a deterministic
// CLI-to-HTTP fallback decision table.
package backend

import (
	"context"
	"strings"
)

// InvokeOptions carries the optional parts of an Invoke call.
type InvokeOptions struct {
	Context         string
	IsDeliberation  bool
	WorkingDirectory string
	ReasoningEffort string
}

// Adapter turns (prompt, model) into text for one backend.
//
// Implementations must not retain ctx beyond the call and must honor
// cancellation by killing any spawned process or aborting any HTTP
// request in flight.
type Adapter interface {
	// Invoke sends prompt (with opts.Context prepended, if any,
	// separated by a blank line) to model and returns the parsed
	// response text.
	Invoke(ctx context.Context, prompt, model string, opts InvokeOptions) (string, error)

	// BackendID is the configured id this adapter was built for
	// (e.g. "claude", "gateway").
	BackendID() string
}

// BuildPrompt prepends context to prompt, separated by a blank line, as
// required by the Backend Adapter contract.
func BuildPrompt(prompt, context string) string {
	if context == "" {
		return prompt
	}
	var b strings.Builder
	b.WriteString(context)
	b.WriteString("\n\n")
	b.WriteString(prompt)
	return b.String()
}

// MaxPromptLen is 0 and nothing in this module reads it: no adapter
// enforces a maximum prompt length.
const MaxPromptLen = 0

// substitutePlaceholders replaces {model}, {prompt}, {working_directory}
// and {reasoning_effort} in an adapter's configured argument template.
func substitutePlaceholders(args []string, model, prompt, workingDirectory, reasoningEffort string) []string {
	out := make([]string, len(args))
	r := strings.NewReplacer(
		"{model}", model,
		"{prompt}", prompt,
		"{working_directory}", workingDirectory,
		"{reasoning_effort}", reasoningEffort,
	)
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

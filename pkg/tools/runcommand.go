package tools

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/blueman82/go-counsel/internal/errs"
)

// RunCommandTimeout is the fixed hard cap for run-command.
const RunCommandTimeout = 10 * time.Second

// AllowedCommands is the fixed allow-list of read-only utilities
// run-command may invoke. The restriction is by command name, not
// working directory: this tool never runs an arbitrary shell, only one
// of these binaries directly via exec.Command, with no shell
// interpolation.
var AllowedCommands = map[string]bool{
	"ls":     true,
	"cat":    true,
	"pwd":    true,
	"find":   true,
	"grep":   true,
	"wc":     true,
	"head":   true,
	"tail":   true,
	"echo":   true,
	"git":    true, // read-only subcommands only; see isReadOnlyGit
}

var readOnlyGitSubcommands = map[string]bool{
	"status": true, "log": true, "diff": true, "show": true, "branch": true, "blame": true,
}

// RunCommandTool executes a whitelisted read-only command.
type RunCommandTool struct{}

func NewRunCommandTool() *RunCommandTool { return &RunCommandTool{} }

func (t *RunCommandTool) Name() string { return "run-command" }

func (t *RunCommandTool) Schema() Schema {
	return objectSchema([]string{"command"}, map[string]Schema{
		"command": stringSchema(),
		"args":    {Type: "array", Items: &Schema{Type: "string"}},
	})
}

func (t *RunCommandTool) Execute(ctx context.Context, workingDirectory string, args map[string]interface{}) (interface{}, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return nil, errs.Validation("command is required")
	}
	if !AllowedCommands[command] {
		return nil, errs.Validation("command %q is not on the allow-list", command)
	}

	var cmdArgs []string
	if raw, ok := args["args"].([]interface{}); ok {
		for _, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, errs.Validation("args must be strings")
			}
			cmdArgs = append(cmdArgs, s)
		}
	}
	if command == "git" && !isReadOnlyGit(cmdArgs) {
		return nil, errs.Validation("git subcommand is not read-only")
	}

	ctx, cancel := context.WithTimeout(ctx, RunCommandTimeout)
	defer cancel()

	// #nosec G204 -- command is restricted to AllowedCommands; no shell is invoked.
	cmd := exec.CommandContext(ctx, command, cmdArgs...)
	if workingDirectory != "" {
		cmd.Dir = workingDirectory
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, errs.Timeout("%s: exceeded %s", command, RunCommandTimeout)
	}
	if err != nil {
		return nil, errs.Tool(err, "%s: %s", command, firstLine(stderr.String()))
	}

	return map[string]interface{}{
		"command": command,
		"args":    cmdArgs,
		"stdout":  stdout.String(),
		"stderr":  stderr.String(),
	}, nil
}

func isReadOnlyGit(args []string) bool {
	if len(args) == 0 {
		return false
	}
	return readOnlyGitSubcommands[args[0]]
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

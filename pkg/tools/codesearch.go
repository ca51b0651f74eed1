package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/blueman82/go-counsel/internal/errs"
)

// MaxCodeSearchMatches caps code-search results.
const MaxCodeSearchMatches = 100

// Match is one code-search hit.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// CodeSearchTool regex-searches text files under a root directory,
// preferring an external "rg" (ripgrep) binary when present and
// falling back to an internal walk.
type CodeSearchTool struct{}

func NewCodeSearchTool() *CodeSearchTool { return &CodeSearchTool{} }

func (t *CodeSearchTool) Name() string { return "code-search" }

func (t *CodeSearchTool) Schema() Schema {
	return objectSchema([]string{"pattern"}, map[string]Schema{
		"pattern": stringSchema(),
		"path":    stringSchema(),
	})
}

func (t *CodeSearchTool) Execute(ctx context.Context, workingDirectory string, args map[string]interface{}) (interface{}, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, errs.Validation("pattern is required")
	}
	searchPath, _ := args["path"].(string)
	root := workingDirectory
	if root == "" {
		root = "."
	}
	if searchPath != "" {
		root = filepath.Join(root, searchPath)
	}

	if rgPath, err := exec.LookPath("rg"); err == nil {
		matches, err := t.searchWithRipgrep(ctx, rgPath, pattern, root)
		if err == nil {
			return matches, nil
		}
	}
	return t.searchInternal(pattern, root)
}

func (t *CodeSearchTool) searchWithRipgrep(ctx context.Context, rgPath, pattern, root string) ([]Match, error) {
	// #nosec G204 -- rg binary path resolved via LookPath; pattern/root are tool arguments, not shell-interpreted.
	cmd := exec.CommandContext(ctx, rgPath, "--line-number", "--no-heading", "--max-count", strconv.Itoa(MaxCodeSearchMatches), pattern, root)
	out, err := cmd.Output()
	if err != nil {
		if len(out) == 0 {
			return nil, err
		}
	}

	var matches []Match
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() && len(matches) < MaxCodeSearchMatches {
		parts := strings.SplitN(sc.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		lineNum, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		matches = append(matches, Match{Path: parts[0], Line: lineNum, Text: parts[2]})
	}
	return matches, nil
}

func (t *CodeSearchTool) searchInternal(pattern, root string) ([]Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.Validation("invalid regex: %v", err)
	}

	var matches []Match
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort walk, skip unreadable entries
		}
		if len(matches) >= MaxCodeSearchMatches {
			return fmt.Errorf("cap reached")
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil //nolint:nilerr
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		lineNum := 0
		for sc.Scan() {
			lineNum++
			if re.MatchString(sc.Text()) {
				matches = append(matches, Match{Path: path, Line: lineNum, Text: sc.Text()})
				if len(matches) >= MaxCodeSearchMatches {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil && len(matches) < MaxCodeSearchMatches {
		return matches, nil
	}
	return matches, nil
}

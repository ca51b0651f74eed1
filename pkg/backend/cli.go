package backend

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"go.uber.org/zap"
)

// CLIConfig describes one subprocess-backed adapter entry.
type CLIConfig struct {
	BackendID      string
	Command        string
	Args           []string
	ActivityTimeout time.Duration
	HardTimeout     time.Duration
	MaxRetries      int
	// Parse strips backends-specific banners/metadata from raw stdout.
	// Defaults to a generic cleaner if nil.
	Parse func(raw string) string
}

const (
	DefaultActivityTimeout = 30 * time.Second
	DefaultHardTimeout     = 10 * time.Minute
	supervisorPollInterval = 500 * time.Millisecond
)

// CLIAdapter spawns a configured command per invocation with an
// activity-based timeout: two concurrent readers drain stdout/stderr
// updating a shared last-activity timestamp; a supervisor polls it,
// killing the process tree on inactivity or on the overall hard
// timeout.
type CLIAdapter struct {
	cfg CLIConfig
	log *zap.Logger
}

func NewCLIAdapter(cfg CLIConfig) *CLIAdapter {
	if cfg.ActivityTimeout == 0 {
		cfg.ActivityTimeout = DefaultActivityTimeout
	}
	if cfg.HardTimeout == 0 {
		cfg.HardTimeout = DefaultHardTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	return &CLIAdapter{cfg: cfg, log: log.With(zap.String("backend", cfg.BackendID))}
}

func (a *CLIAdapter) BackendID() string { return a.cfg.BackendID }

func (a *CLIAdapter) Invoke(ctx context.Context, prompt, model string, opts InvokeOptions) (string, error) {
	full := BuildPrompt(prompt, opts.Context)
	policy := DefaultRetryPolicy()
	policy.MaxRetries = a.cfg.MaxRetries

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		text, transient, err := a.invokeOnce(ctx, full, model, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !transient || attempt > policy.MaxRetries {
			break
		}
		a.log.Warn("transient backend failure, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := policy.Sleep(ctx, attempt); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", lastErr
}

func (a *CLIAdapter) invokeOnce(ctx context.Context, prompt, model string, opts InvokeOptions) (text string, transient bool, err error) {
	args := substitutePlaceholders(a.cfg.Args, model, prompt, opts.WorkingDirectory, opts.ReasoningEffort)

	// #nosec G204 -- command and args come from operator configuration, not caller input.
	cmd := exec.Command(a.cfg.Command, args...)
	cmd.Env = os.Environ()
	if opts.WorkingDirectory != "" {
		cmd.Dir = opts.WorkingDirectory
	}
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", false, errs.BackendInvocation(err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", false, errs.BackendInvocation(err, "stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return "", false, errs.BackendInvocation(err, "start %s", a.cfg.Command)
	}

	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())
	start := time.Now()

	var outBuf, errBuf bytes.Buffer
	var mu sync.Mutex
	drain := func(r io.Reader, buf *bytes.Buffer) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			mu.Lock()
			buf.WriteString(sc.Text())
			buf.WriteByte('\n')
			mu.Unlock()
			lastActivity.Store(time.Now().UnixNano())
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); drain(stdout, &outBuf) }()
	go func() { defer wg.Done(); drain(stderr, &errBuf) }()

	waitDone := make(chan error, 1)
	go func() {
		wg.Wait()
		waitDone <- cmd.Wait()
	}()

	supervisor := time.NewTicker(supervisorPollInterval)
	defer supervisor.Stop()

loop:
	for {
		select {
		case err := <-waitDone:
			if err != nil {
				mu.Lock()
				firstLine := firstNonEmptyLine(errBuf.String())
				mu.Unlock()
				if IsTransient(firstLine) {
					return "", true, errs.Transient(err, "%s: %s", a.cfg.Command, firstLine)
				}
				return "", false, errs.BackendInvocation(err, "%s: %s", a.cfg.Command, firstLine)
			}
			break loop
		case <-ctx.Done():
			killTree(cmd)
			return "", false, errs.Timeout("%s: context cancelled", a.cfg.Command)
		case <-supervisor.C:
			now := time.Now()
			last := time.Unix(0, lastActivity.Load())
			if now.Sub(last) > a.cfg.ActivityTimeout {
				killTree(cmd)
				return "", false, errs.Timeout("%s: no output for %s", a.cfg.Command, a.cfg.ActivityTimeout)
			}
			if now.Sub(start) > a.cfg.HardTimeout {
				killTree(cmd)
				return "", false, errs.Timeout("%s: exceeded hard timeout %s", a.cfg.Command, a.cfg.HardTimeout)
			}
		}
	}

	mu.Lock()
	raw := outBuf.String()
	mu.Unlock()

	parse := a.cfg.Parse
	if parse == nil {
		parse = CleanStdout
	}
	return parse(raw), false, nil
}

// killTree kills the process group to catch children spawned by the
// CLI tool, falling back to killing just the process.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = cmd.Process.Kill()
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return s
}

// CleanStdout strips common banner/loading and timing-metadata lines
// from a CLI tool's raw stdout while preserving code blocks and
// multi-line structure.
func CleanStdout(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		if isNoiseLine(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isNoiseLine(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	noisePrefixes := []string{
		"Loading", "loading", "Connecting", "connecting",
		"[INFO]", "[DEBUG]", "[WARN]",
	}
	for _, p := range noisePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	if strings.HasPrefix(trimmed, "Elapsed:") || strings.HasPrefix(trimmed, "Tokens:") {
		return true
	}
	return false
}

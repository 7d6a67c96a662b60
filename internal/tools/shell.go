package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/ore-agent/internal/capability"
)

// ShellConfig tunes the shell tool's policy screen. The permission
// gate decides whether the tool may run at all; this screen rejects
// individual commands even when shell is granted.
type ShellConfig struct {
	WorkingDir     string
	DeniedPatterns []string
	DefaultTimeout time.Duration
	MaxOutputBytes int
}

// DefaultShellConfig returns the stock denied patterns and limits.
func DefaultShellConfig() ShellConfig {
	return ShellConfig{
		DeniedPatterns: []string{
			"rm -rf /",
			"rm -rf /*",
			"mkfs",
			"dd if=",
			"> /dev/sd",
			"chmod -R 777 /",
			":(){ :|:& };:", // Fork bomb
		},
		DefaultTimeout: 30 * time.Second,
		MaxOutputBytes: 100 * 1024,
	}
}

// ShellTool runs a command through /bin/sh. Requires the shell
// permission. Args: command=<cmd>, optional timeout=<seconds>.
type ShellTool struct {
	config ShellConfig
}

// NewShellTool creates a shell tool, filling zero limits from the
// defaults.
func NewShellTool(cfg ShellConfig) *ShellTool {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = 100 * 1024
	}
	return &ShellTool{config: cfg}
}

func (*ShellTool) Name() string { return "shell" }

func (*ShellTool) Description() string {
	return "Run a shell command. Args: command=<cmd> [timeout=<seconds>]. Requires shell."
}

func (*ShellTool) RequiredPermissions() capability.Set {
	return capability.NewSet(capability.Shell)
}

func (t *ShellTool) Run(ctx context.Context, args map[string]string) *Result {
	command := strings.TrimSpace(args["command"])
	if command == "" {
		return NewErrorResult(t.Name(), "missing required argument: command=...")
	}

	lower := strings.ToLower(command)
	for _, denied := range t.config.DeniedPatterns {
		if strings.Contains(lower, strings.ToLower(denied)) {
			return NewErrorResult(t.Name(),
				fmt.Sprintf("command blocked by policy: matches denied pattern %q", denied))
		}
	}

	timeout := t.config.DefaultTimeout
	if raw := args["timeout"]; raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return NewErrorResult(t.Name(), fmt.Sprintf("invalid timeout: %q", raw))
		}
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > 5*time.Minute {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	if t.config.WorkingDir != "" {
		cmd.Dir = t.config.WorkingDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	output := truncate(stdout.String(), t.config.MaxOutputBytes)
	if ctx.Err() == context.DeadlineExceeded {
		r := NewErrorResult(t.Name(), fmt.Sprintf("command timed out after %s", timeout))
		r.Output = output
		return r
	}
	if runErr != nil {
		r := NewErrorResult(t.Name(), fmt.Sprintf("command failed: %v", runErr))
		r.Output = output
		r.Metadata["stderr"] = truncate(stderr.String(), t.config.MaxOutputBytes)
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			r.Metadata["exit_code"] = exitErr.ExitCode()
		}
		return r
	}

	result := NewResult(t.Name(), output)
	result.Metadata["exit_code"] = 0
	if stderr.Len() > 0 {
		result.Metadata["stderr"] = truncate(stderr.String(), t.config.MaxOutputBytes)
	}
	return result
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (output truncated)"
}

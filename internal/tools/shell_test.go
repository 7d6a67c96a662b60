package tools

import (
	"context"
	"strings"
	"testing"
)

func TestShellRun(t *testing.T) {
	tool := NewShellTool(DefaultShellConfig())

	result := tool.Run(context.Background(), map[string]string{"command": "echo hello"})
	if result.Status != StatusOK {
		t.Fatalf("Status = %q, metadata %v", result.Status, result.Metadata)
	}
	if strings.TrimSpace(result.Output) != "hello" {
		t.Errorf("Output = %q", result.Output)
	}
	if result.Metadata["exit_code"] != 0 {
		t.Errorf("exit_code = %v", result.Metadata["exit_code"])
	}
}

func TestShellDeniedPattern(t *testing.T) {
	tool := NewShellTool(DefaultShellConfig())

	result := tool.Run(context.Background(), map[string]string{"command": "rm -rf / --no-preserve-root"})
	if result.Status != StatusError {
		t.Fatal("denied pattern executed")
	}
	msg, _ := result.Metadata[MetaErrorMessage].(string)
	if !strings.Contains(msg, "denied pattern") {
		t.Errorf("error_message = %q", msg)
	}
}

func TestShellMissingCommand(t *testing.T) {
	tool := NewShellTool(DefaultShellConfig())

	result := tool.Run(context.Background(), nil)
	if result.Status != StatusError {
		t.Error("missing command accepted")
	}
}

func TestShellNonZeroExit(t *testing.T) {
	tool := NewShellTool(DefaultShellConfig())

	result := tool.Run(context.Background(), map[string]string{"command": "exit 3"})
	if result.Status != StatusError {
		t.Fatalf("Status = %q, want error", result.Status)
	}
	if result.Metadata["exit_code"] != 3 {
		t.Errorf("exit_code = %v, want 3", result.Metadata["exit_code"])
	}
}

func TestShellInvalidTimeout(t *testing.T) {
	tool := NewShellTool(DefaultShellConfig())

	result := tool.Run(context.Background(), map[string]string{"command": "echo hi", "timeout": "soon"})
	if result.Status != StatusError {
		t.Error("invalid timeout accepted")
	}
}

func TestShellWorkingDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultShellConfig()
	cfg.WorkingDir = dir
	tool := NewShellTool(cfg)

	result := tool.Run(context.Background(), map[string]string{"command": "pwd"})
	if result.Status != StatusOK {
		t.Fatalf("Status = %q", result.Status)
	}
	// Resolve symlinks on platforms where TempDir lives under one.
	if !strings.Contains(result.Output, "/") {
		t.Errorf("pwd output = %q", result.Output)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate unchanged input: %q", got)
	}
	got := truncate(strings.Repeat("x", 200), 10)
	if !strings.HasPrefix(got, strings.Repeat("x", 10)) || !strings.Contains(got, "truncated") {
		t.Errorf("truncate = %q", got)
	}
}

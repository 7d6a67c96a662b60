package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nugget/ore-agent/internal/capability"
)

// ReadFile reads a local file. Requires path=... in args and the
// filesystem-read permission. When Root is non-empty, paths are
// resolved relative to it and may not escape it.
type ReadFile struct {
	Root string
}

func (ReadFile) Name() string { return "read-file" }

func (ReadFile) Description() string {
	return "Read a local file. Args: path=<filepath>. Requires filesystem-read."
}

func (ReadFile) RequiredPermissions() capability.Set {
	return capability.NewSet(capability.FilesystemRead)
}

func (ReadFile) RoutingHints() []string {
	return []string{"read file", "open file", "show file contents"}
}

// ExtractArgs picks the first whitespace-delimited token that looks
// like a path (contains a separator or a dot-extension).
func (ReadFile) ExtractArgs(prompt string) map[string]string {
	if p := extractPathToken(prompt); p != "" {
		return map[string]string{"path": p}
	}
	return map[string]string{}
}

func (t ReadFile) Run(_ context.Context, args map[string]string) *Result {
	path := strings.TrimSpace(args["path"])
	if path == "" {
		return NewErrorResult(t.Name(), "missing required argument: path=...")
	}
	resolved, err := resolveWithin(t.Root, path)
	if err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(t.Name(), fmt.Sprintf("file not found: %s", path))
		}
		return NewErrorResult(t.Name(), err.Error())
	}
	return NewResult(t.Name(), string(data))
}

// WriteFile writes content to a local file, creating parent
// directories. Requires filesystem-write. Same Root confinement as
// ReadFile.
type WriteFile struct {
	Root string
}

func (WriteFile) Name() string { return "write-file" }

func (WriteFile) Description() string {
	return "Write a local file. Args: path=<filepath> content=<text>. Requires filesystem-write."
}

func (WriteFile) RequiredPermissions() capability.Set {
	return capability.NewSet(capability.FilesystemWrite)
}

func (t WriteFile) Run(_ context.Context, args map[string]string) *Result {
	path := strings.TrimSpace(args["path"])
	if path == "" {
		return NewErrorResult(t.Name(), "missing required argument: path=...")
	}
	content, ok := args["content"]
	if !ok {
		return NewErrorResult(t.Name(), "missing required argument: content=...")
	}
	resolved, err := resolveWithin(t.Root, path)
	if err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}
	result := NewResult(t.Name(), fmt.Sprintf("wrote %d bytes to %s", len(content), path))
	result.Metadata["bytes_written"] = len(content)
	return result
}

// resolveWithin resolves path against root and rejects escapes. With
// an empty root the path is used as given.
func resolveWithin(root, path string) (string, error) {
	if root == "" {
		return path, nil
	}
	resolved := filepath.Join(root, path)
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace root: %s", path)
	}
	return resolved, nil
}

// extractPathToken returns the first token of prompt that looks like a
// filesystem path.
func extractPathToken(prompt string) string {
	for _, token := range strings.Fields(prompt) {
		token = strings.Trim(token, `"'`)
		if strings.ContainsRune(token, filepath.Separator) {
			return token
		}
		if ext := filepath.Ext(token); len(ext) > 1 && !strings.HasSuffix(token, ".") {
			return token
		}
	}
	return ""
}

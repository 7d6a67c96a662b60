package tools

import (
	"context"
	"reflect"
	"testing"

	"github.com/nugget/ore-agent/internal/router"
)

func TestEchoRun(t *testing.T) {
	tests := []struct {
		name string
		args map[string]string
		want string
	}{
		{name: "no args", args: nil, want: "(no arguments)"},
		{name: "single", args: map[string]string{"msg": "hello"}, want: "msg=hello"},
		{name: "sorted keys", args: map[string]string{"b": "2", "a": "1"}, want: "a=1\nb=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Echo{}.Run(context.Background(), tt.args)
			if result.Status != StatusOK {
				t.Fatalf("Status = %q", result.Status)
			}
			if result.Output != tt.want {
				t.Errorf("Output = %q, want %q", result.Output, tt.want)
			}
			if result.ID == "" || result.Timestamp.IsZero() {
				t.Error("result missing id or timestamp")
			}
		})
	}
}

func TestEchoExtractArgs(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   map[string]string
	}{
		{name: "echo prefix", prompt: "echo hello world", want: map[string]string{"msg": "hello world"}},
		{name: "mixed case prefix", prompt: "Echo KeepCase", want: map[string]string{"msg": "KeepCase"}},
		{name: "no prefix", prompt: "repeat this line", want: map[string]string{}},
		{name: "bare echo", prompt: "echo", want: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Echo{}.ExtractArgs(tt.prompt)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractArgs(%q) = %v, want %v", tt.prompt, got, tt.want)
			}
		})
	}
}

func TestHintsHelper(t *testing.T) {
	if got := Hints(Echo{}); len(got) == 0 {
		t.Error("echo should expose routing hints")
	}
	// ShellTool has no hints; the helper returns nil rather than
	// requiring every action to implement Hinter.
	if got := Hints(NewShellTool(DefaultShellConfig())); got != nil {
		t.Errorf("Hints(shell) = %v, want nil", got)
	}
}

func TestExtractArgsHelper(t *testing.T) {
	got := ExtractArgs(NewShellTool(DefaultShellConfig()), "echo hi")
	if got == nil || len(got) != 0 {
		t.Errorf("ExtractArgs on non-extractor = %v, want empty map", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewShellTool(DefaultShellConfig()))
	r.Register(Echo{})
	r.Register(ReadFile{})

	if _, ok := r.Get("echo"); !ok {
		t.Error("Get(echo) not found")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("Get(nope) found a tool")
	}

	want := []string{"echo", "read-file", "shell"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestTargets(t *testing.T) {
	r := NewRegistry()
	r.Register(Echo{})
	r.Register(NewShellTool(DefaultShellConfig()))

	targets := Targets(r)

	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d", len(targets))
	}
	if targets[0].Name != "echo" || targets[1].Name != "shell" {
		t.Errorf("targets not sorted by name: %+v", targets)
	}
	for _, tgt := range targets {
		if tgt.Type != router.TypeTool {
			t.Errorf("target %q type = %q, want tool", tgt.Name, tgt.Type)
		}
	}
	if len(targets[0].Hints) == 0 {
		t.Error("echo target lost its hints")
	}
	if targets[1].Hints != nil && len(targets[1].Hints) != 0 {
		t.Errorf("shell target has hints: %v", targets[1].Hints)
	}
}

func TestNewErrorResult(t *testing.T) {
	r := NewErrorResult("read-file", "boom")
	if r.Status != StatusError {
		t.Errorf("Status = %q", r.Status)
	}
	if r.Metadata[MetaErrorMessage] != "boom" {
		t.Errorf("error_message = %v", r.Metadata[MetaErrorMessage])
	}
}

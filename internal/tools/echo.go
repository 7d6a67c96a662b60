package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nugget/ore-agent/internal/capability"
)

// Echo echoes its arguments back as output. It requires no
// permissions, which also makes it the standing example of an action
// that passes the gate under an empty grant.
type Echo struct{}

func (Echo) Name() string { return "echo" }

func (Echo) Description() string {
	return "Echo arguments back (e.g. msg=hello). No permissions required."
}

func (Echo) RequiredPermissions() capability.Set { return capability.NewSet() }

// RoutingHints makes echo routable for exact test prompts and the
// obvious keyword.
func (Echo) RoutingHints() []string {
	return []string{"echo", "repeat this line"}
}

// ExtractArgs treats everything after a leading "echo " as the message.
func (Echo) ExtractArgs(prompt string) map[string]string {
	trimmed := strings.TrimSpace(prompt)
	if strings.HasPrefix(strings.ToLower(trimmed), "echo ") {
		// Preserve the original casing of the payload.
		if payload := strings.TrimSpace(trimmed[len("echo "):]); payload != "" {
			return map[string]string{"msg": payload}
		}
	}
	return map[string]string{}
}

func (Echo) Run(_ context.Context, args map[string]string) *Result {
	if len(args) == 0 {
		return NewResult("echo", "(no arguments)")
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s=%s", k, args[k])
	}
	return NewResult("echo", strings.Join(lines, "\n"))
}

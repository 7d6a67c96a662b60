// Package gate enforces a default-deny permission policy around tool
// execution. A tool runs only when its required permissions are a
// subset of the granted set chosen at process start; everything else
// is denied with a typed error naming what is missing.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/ore-agent/internal/capability"
	"github.com/nugget/ore-agent/internal/tools"
)

// DeniedError reports that an action was blocked by the gate. It is
// the only error the gate itself introduces; failures inside an
// action's Run surface as an error-status Result instead. A denial is
// fatal to the invocation attempt and is never retried here.
type DeniedError struct {
	Action  string
	Missing []capability.Permission
}

// Error names the action and every missing permission, sorted, so the
// operator knows exactly what to grant.
func (e *DeniedError) Error() string {
	names := make([]string, len(e.Missing))
	for i, p := range e.Missing {
		names[i] = string(p)
	}
	return fmt.Sprintf("tool %q denied: missing permissions: %s",
		e.Action, strings.Join(names, ", "))
}

// Gate wraps action execution with a permission check. It holds only
// the granted set, fixed for the life of the gate; each Run is
// independent, so a Gate is safe for concurrent use.
type Gate struct {
	granted capability.Set
	logger  *slog.Logger
}

// New creates a gate granting exactly the given set.
func New(logger *slog.Logger, granted capability.Set) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{granted: granted, logger: logger}
}

// Permissive creates a gate granting every known permission. For tests
// and trusted contexts only — never the production default.
func Permissive(logger *slog.Logger) *Gate {
	return New(logger, capability.NewSet(capability.All()...))
}

// Granted returns the granted permission set.
func (g *Gate) Granted() capability.Set {
	return g.granted
}

// Check returns a *DeniedError when the action requires any permission
// outside the granted set. An action with no required permissions
// always passes, whatever is granted.
func (g *Gate) Check(action tools.Action) error {
	missing := action.RequiredPermissions().Missing(g.granted)
	if len(missing) > 0 {
		return &DeniedError{Action: action.Name(), Missing: missing}
	}
	return nil
}

// Run checks the action's permissions and, on success, executes it and
// instruments the result. On denial the action's Run is never invoked
// and the denial is returned unchanged.
//
// The returned result carries execution_time_ms and
// checked_permissions in its metadata. checked_permissions lists the
// action's required permissions, sorted — what was checked, not what
// was missing. Metadata keys the action already set are preserved; the
// gate fills these two in only when absent.
func (g *Gate) Run(ctx context.Context, action tools.Action, args map[string]string) (*tools.Result, error) {
	if err := g.Check(action); err != nil {
		g.logger.Warn("tool denied",
			"tool", action.Name(),
			"granted", g.granted.String(),
		)
		return nil, err
	}

	start := time.Now()
	result := action.Run(ctx, args)
	elapsed := time.Since(start)

	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	if _, ok := result.Metadata[tools.MetaExecutionTimeMS]; !ok {
		result.Metadata[tools.MetaExecutionTimeMS] = float64(elapsed) / float64(time.Millisecond)
	}
	if _, ok := result.Metadata[tools.MetaCheckedPermissions]; !ok {
		result.Metadata[tools.MetaCheckedPermissions] = action.RequiredPermissions().Strings()
	}

	g.logger.Debug("tool executed",
		"tool", action.Name(),
		"status", result.Status,
		"elapsed", elapsed,
	)

	return result, nil
}

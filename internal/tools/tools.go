// Package tools defines the runnable tool interface, the result value
// returned from every invocation, and the registry the CLI and engine
// dispatch against. Tools never check their own permissions — that is
// the gate's job.
package tools

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/ore-agent/internal/capability"
)

// Action is a named, possibly side-effecting unit of work invokable
// with string-keyed arguments.
//
// Run must not panic and must not return nil: internal failures
// (missing argument, I/O error) are reported as a Result with
// StatusError, not as an error value. Only the gate introduces a real
// error path, for permission denial.
type Action interface {
	// Name is the unique registry key, used for CLI lookup and logging.
	Name() string

	// Description is a short human-readable summary for listings.
	Description() string

	// RequiredPermissions returns the permissions the gate must have
	// granted before Run may be invoked. Empty means none.
	RequiredPermissions() capability.Set

	// Run executes the action. Args are key=value pairs from the CLI
	// or from the action's own argument extraction.
	Run(ctx context.Context, args map[string]string) *Result
}

// Hinter is an optional capability: actions that implement it are
// routable by keyword. Actions without it are invokable only by name.
type Hinter interface {
	// RoutingHints returns the literal phrases the router matches
	// against user prompts.
	RoutingHints() []string
}

// ArgExtractor is an optional capability: best-effort extraction of
// structured arguments from free text. An empty map means nothing was
// recognized.
type ArgExtractor interface {
	ExtractArgs(prompt string) map[string]string
}

// Hints returns a's routing hints, or nil when a is not routable.
func Hints(a Action) []string {
	if h, ok := a.(Hinter); ok {
		return h.RoutingHints()
	}
	return nil
}

// ExtractArgs returns a's best-effort argument extraction for prompt,
// or an empty map when a does not support extraction.
func ExtractArgs(a Action, prompt string) map[string]string {
	if e, ok := a.(ArgExtractor); ok {
		if args := e.ExtractArgs(prompt); args != nil {
			return args
		}
	}
	return map[string]string{}
}

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metadata keys with defined meaning. Everything else in a Result's
// metadata map is diagnostic and unstable.
const (
	MetaErrorMessage       = "error_message"
	MetaExecutionTimeMS    = "execution_time_ms"
	MetaCheckedPermissions = "checked_permissions"
)

// Result is the outcome of one action invocation. It is constructed
// fresh per run and never mutated afterwards; it is never persisted
// across turns.
type Result struct {
	ToolName  string         `json:"tool_name"`
	Output    string         `json:"output"`
	Status    string         `json:"status"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// NewResult builds a successful Result for the named tool.
func NewResult(toolName, output string) *Result {
	return &Result{
		ToolName:  toolName,
		Output:    output,
		Status:    StatusOK,
		ID:        NewID(),
		Timestamp: time.Now(),
		Metadata:  map[string]any{},
	}
}

// NewErrorResult builds a failed Result carrying the error message in
// metadata. Action-internal failures are data, not raised errors.
func NewErrorResult(toolName, message string) *Result {
	r := NewResult(toolName, "")
	r.Status = StatusError
	r.Metadata[MetaErrorMessage] = message
	return r
}

// NewID generates a new UUIDv7, falling back to v4 if the clock
// misbehaves.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Registry holds the available actions keyed by name.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action, replacing any previous action of the same
// name.
func (r *Registry) Register(a Action) {
	r.actions[a.Name()] = a
}

// Get retrieves an action by name.
func (r *Registry) Get(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the registered actions sorted by name, for deterministic
// listings and target building.
func (r *Registry) All() []Action {
	all := make([]Action, 0, len(r.actions))
	for _, name := range r.Names() {
		all = append(all, r.actions[name])
	}
	return all
}

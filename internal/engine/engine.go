// Package engine orchestrates one conversational turn: route the
// prompt, run at most one gated tool, assemble the message list, and
// delegate to the reasoning backend.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/ore-agent/internal/gate"
	"github.com/nugget/ore-agent/internal/llm"
	"github.com/nugget/ore-agent/internal/router"
	"github.com/nugget/ore-agent/internal/session"
	"github.com/nugget/ore-agent/internal/skills"
	"github.com/nugget/ore-agent/internal/tools"
)

// Turn is the portable execution artifact for one conversational
// turn. Decision and ToolResult are present only when routing ran and
// a tool executed, respectively.
type Turn struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Prompt     string           `json:"prompt"`
	Decision   *router.Decision `json:"decision,omitempty"`
	ToolResult *tools.Result    `json:"tool_result,omitempty"`
	Response   *llm.Response    `json:"response"`
}

// Engine assembles context and drives the reasoning backend. The
// persona lives here, not in the backend.
type Engine struct {
	logger   *slog.Logger
	client   llm.Client
	registry *tools.Registry
	skills   skills.Registry
	router   *router.RuleRouter // nil disables routing
	gate     *gate.Gate
	persona  string
	session  *session.Session // nil for stateless turns
}

// Options configures an Engine.
type Options struct {
	Client   llm.Client
	Registry *tools.Registry
	Skills   skills.Registry
	Router   *router.RuleRouter
	Gate     *gate.Gate
	Persona  string
	Session  *session.Session
}

// New creates an engine. Client and Gate are required; a nil Registry
// or Skills simply yields nothing to route to.
func New(logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Engine{
		logger:   logger,
		client:   opts.Client,
		registry: registry,
		skills:   opts.Skills,
		router:   opts.Router,
		gate:     opts.Gate,
		persona:  opts.Persona,
		session:  opts.Session,
	}
}

// Session returns the engine's session, or nil when stateless.
func (e *Engine) Session() *session.Session {
	return e.session
}

// Execute runs one turn for the prompt and returns its artifact. A
// permission denial aborts the turn: the caller decides whether to
// rerun with a different grant set.
func (e *Engine) Execute(ctx context.Context, prompt string) (*Turn, error) {
	return e.execute(ctx, prompt, nil)
}

// ExecuteStream is Execute with tokens streamed to callback as the
// backend produces them.
func (e *Engine) ExecuteStream(ctx context.Context, prompt string, callback llm.StreamCallback) (*Turn, error) {
	return e.execute(ctx, prompt, callback)
}

func (e *Engine) execute(ctx context.Context, prompt string, callback llm.StreamCallback) (*Turn, error) {
	turn := &Turn{
		ID:        newID(),
		Timestamp: time.Now(),
		Prompt:    prompt,
	}

	var skillInstructions string

	if e.router != nil {
		// Targets are rebuilt from the live registries every turn; the
		// router does not cache them.
		targets := append(tools.Targets(e.registry), skills.Targets(e.skills)...)
		decision := e.router.Route(prompt, targets)
		turn.Decision = &decision

		switch decision.TargetType {
		case router.TypeTool:
			result, err := e.runTool(ctx, decision.Target, prompt, turn)
			if err != nil {
				return nil, err
			}
			turn.ToolResult = result
		case router.TypeSkill:
			instructions, err := e.loadSkill(decision.Target)
			if err != nil {
				return nil, err
			}
			skillInstructions = instructions
		default:
			e.logger.Debug("routing fallback", "reasoning", decision.Reasoning)
		}
	}

	messages := e.assembleMessages(prompt, skillInstructions, turn.ToolResult)

	var resp *llm.Response
	var err error
	if callback != nil {
		resp, err = e.client.StreamReason(ctx, messages, callback)
	} else {
		resp, err = e.client.Reason(ctx, messages)
	}
	if err != nil {
		return nil, fmt.Errorf("reason: %w", err)
	}
	turn.Response = resp

	if e.session != nil {
		e.session.Append(llm.NewMessage(llm.RoleUser, prompt))
		e.session.Append(llm.NewMessage(llm.RoleAssistant, resp.Content))
	}

	e.logger.Info("turn completed",
		"turn_id", turn.ID,
		"routed", turn.Decision != nil && !turn.Decision.Fallback(),
		"tool_ran", turn.ToolResult != nil,
		"model", resp.ModelID,
	)

	return turn, nil
}

// RunTool executes a named tool directly through the gate, bypassing
// the router. Used by the CLI's explicit -tool invocation.
func (e *Engine) RunTool(ctx context.Context, name string, args map[string]string) (*tools.Result, error) {
	action, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q (available: %v)", name, e.registry.Names())
	}
	return e.gate.Run(ctx, action, args)
}

// runTool resolves the routed tool, extracts its arguments from the
// prompt, and runs it through the gate. The decision on the turn is
// replaced by a derived copy carrying the extracted args.
func (e *Engine) runTool(ctx context.Context, name, prompt string, turn *Turn) (*tools.Result, error) {
	action, ok := e.registry.Get(name)
	if !ok {
		// Routed to a tool that vanished from the registry; treat as a
		// hard configuration error rather than guessing.
		return nil, fmt.Errorf("routed tool %q is not registered", name)
	}

	args := tools.ExtractArgs(action, prompt)
	derived := turn.Decision.WithArgs(args)
	turn.Decision = &derived

	result, err := e.gate.Run(ctx, action, args)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) loadSkill(name string) (string, error) {
	meta, ok := e.skills[name]
	if !ok {
		return "", fmt.Errorf("routed skill %q is not registered", name)
	}
	instructions, err := skills.LoadInstructions(meta.Path)
	if err != nil {
		return "", fmt.Errorf("load skill %q: %w", name, err)
	}
	return instructions, nil
}

// assembleMessages builds the turn's message list: persona, skill
// instructions, session history, tool output, then the user prompt.
func (e *Engine) assembleMessages(prompt, skillInstructions string, toolResult *tools.Result) []llm.Message {
	var messages []llm.Message

	if e.persona != "" {
		messages = append(messages, llm.NewMessage(llm.RoleSystem, e.persona))
	}
	if skillInstructions != "" {
		messages = append(messages, llm.NewMessage(llm.RoleSystem,
			"Follow these skill instructions for this task:\n\n"+skillInstructions))
	}
	if e.session != nil {
		messages = append(messages, e.session.Messages...)
	}
	if toolResult != nil {
		messages = append(messages, llm.NewMessage(llm.RoleSystem, formatToolResult(toolResult)))
	}
	messages = append(messages, llm.NewMessage(llm.RoleUser, prompt))

	return messages
}

// formatToolResult folds a tool's outcome into context for the
// reasoner, including failures so the model can explain them.
func formatToolResult(result *tools.Result) string {
	if result.Status == tools.StatusError {
		msg, _ := result.Metadata[tools.MetaErrorMessage].(string)
		return fmt.Sprintf("Tool %q failed: %s", result.ToolName, msg)
	}
	return fmt.Sprintf("Tool %q output:\n%s", result.ToolName, result.Output)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

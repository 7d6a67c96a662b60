// Ore is a conversational agent with permission-gated tool execution.
//
// Every prompt is routed against the registered tools and skills; a
// confident match runs the tool through the permission gate (or loads
// the skill's instructions) before the reasoning backend produces the
// reply. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	ore ask <prompt>         Run a single conversational turn
//	ore repl                 Interactive conversation loop
//	ore run <tool> [k=v...]  Run a tool directly through the gate
//	ore tools                List registered tools and their permissions
//	ore skills               List discovered skills
//	ore models               List models installed on the Ollama server
//	ore sessions             List saved sessions
//	ore version              Print version and build information
//	ore -o json version      Output version information as JSON
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nugget/ore-agent/internal/buildinfo"
	"github.com/nugget/ore-agent/internal/capability"
	"github.com/nugget/ore-agent/internal/config"
	"github.com/nugget/ore-agent/internal/engine"
	"github.com/nugget/ore-agent/internal/gate"
	"github.com/nugget/ore-agent/internal/llm"
	"github.com/nugget/ore-agent/internal/router"
	"github.com/nugget/ore-agent/internal/session"
	"github.com/nugget/ore-agent/internal/skills"
	"github.com/nugget/ore-agent/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// options collects everything parsed from the command line.
type options struct {
	configPath  string
	outputFmt   string // "text" (default) or "json"
	model       string
	backend     string
	sessionName string
	grants      []string
	noRoute     bool
	logLevel    string
	command     string
	cmdArgs     []string
}

// run is the real entry point for the ore command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process.
//   - stdin feeds the repl; other commands ignore it.
//   - stdout and stderr receive all program output. Structured logs go
//     to stderr so tool output and replies on stdout stay clean.
//   - args is os.Args[1:] — the command-line arguments after the
//     program name. We parse these manually rather than using the flag
//     package to avoid global state that interferes with parallel
//     tests.
//
// run returns nil on success and a non-nil error for any failure. The
// caller (main) is responsible for printing the error and exiting.
func run(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	switch opts.command {
	case "ask":
		if len(opts.cmdArgs) == 0 {
			return fmt.Errorf("usage: ore ask <prompt>")
		}
		return runAsk(ctx, stdout, stderr, opts, strings.Join(opts.cmdArgs, " "))
	case "repl":
		return runRepl(ctx, stdin, stdout, stderr, opts)
	case "run":
		if len(opts.cmdArgs) == 0 {
			return fmt.Errorf("usage: ore run <tool> [key=value ...]")
		}
		return runTool(ctx, stdout, stderr, opts)
	case "tools":
		return runTools(stdout, stderr, opts)
	case "skills":
		return runSkills(stdout, stderr, opts)
	case "models":
		return runModels(ctx, stdout, opts)
	case "sessions":
		return runSessions(stdout, stderr, opts)
	case "version":
		return runVersion(stdout, opts.outputFmt)
	case "", "help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", opts.command)
	}
}

// parseArgs parses flags and the subcommand by hand. The flag package
// relies on package-level globals (flag.CommandLine), which makes it
// impossible to call run() concurrently from tests. Our argument
// surface is small enough that manual parsing is clearer than bringing
// in a CLI framework.
func parseArgs(args []string) (options, error) {
	var opts options

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			opts.configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			opts.configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			opts.outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			opts.outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			opts.outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-model" && i+1 < len(args):
			opts.model = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-model="):
			opts.model = strings.TrimPrefix(args[i], "-model=")
		case args[i] == "-backend" && i+1 < len(args):
			opts.backend = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-backend="):
			opts.backend = strings.TrimPrefix(args[i], "-backend=")
		case args[i] == "-session" && i+1 < len(args):
			opts.sessionName = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-session="):
			opts.sessionName = strings.TrimPrefix(args[i], "-session=")
		case args[i] == "-grant" && i+1 < len(args):
			opts.grants = append(opts.grants, args[i+1])
			i++
		case strings.HasPrefix(args[i], "-grant="):
			opts.grants = append(opts.grants, strings.TrimPrefix(args[i], "-grant="))
		case args[i] == "-log-level" && i+1 < len(args):
			opts.logLevel = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-log-level="):
			opts.logLevel = strings.TrimPrefix(args[i], "-log-level=")
		case args[i] == "-no-route":
			opts.noRoute = true
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			opts.command = "help"
			return opts, nil
		case !strings.HasPrefix(args[i], "-") && opts.command == "":
			opts.command = args[i]
		default:
			if opts.command != "" {
				// Collect remaining args as subcommand arguments.
				opts.cmdArgs = append(opts.cmdArgs, args[i])
			} else {
				return opts, fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if opts.outputFmt == "" {
		opts.outputFmt = "text"
	}
	if opts.outputFmt != "text" && opts.outputFmt != "json" {
		return opts, fmt.Errorf("unknown output format: %q (expected text or json)", opts.outputFmt)
	}
	return opts, nil
}

// setup loads the config and produces the logger shared by every
// subcommand that needs one. Flag values override the file.
func setup(stderr io.Writer, opts options) (*config.Config, *slog.Logger, error) {
	path, err := config.FindConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if opts.backend != "" {
		cfg.Models.Backend = opts.backend
	}
	if opts.model != "" {
		cfg.Models.Default = opts.model
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.noRoute {
		cfg.Router.Disabled = true
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(stderr, level)

	if path != "" {
		logger.Debug("config loaded", "path", path)
	}
	return cfg, logger, nil
}

// buildRegistry registers the built-in tools from the configuration.
func buildRegistry(cfg *config.Config) *tools.Registry {
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = "."
	}

	shellCfg := tools.DefaultShellConfig()
	if cfg.ShellTool.WorkingDir != "" {
		shellCfg.WorkingDir = cfg.ShellTool.WorkingDir
	}
	if len(cfg.ShellTool.DeniedPatterns) > 0 {
		shellCfg.DeniedPatterns = cfg.ShellTool.DeniedPatterns
	}
	if cfg.ShellTool.DefaultTimeoutSec > 0 {
		shellCfg.DefaultTimeout = cfg.ShellTimeout()
	}

	registry := tools.NewRegistry()
	registry.Register(tools.Echo{})
	registry.Register(tools.ReadFile{Root: workspace})
	registry.Register(tools.WriteFile{Root: workspace})
	registry.Register(tools.NewShellTool(shellCfg))
	registry.Register(tools.NewFetch(cfg.FetchTimeout(), cfg.Fetch.MaxBytes))
	return registry
}

// buildGate merges config grants with -grant flags. Unknown permission
// names fail fast before anything runs.
func buildGate(logger *slog.Logger, cfg *config.Config, opts options) (*gate.Gate, error) {
	granted, err := capability.ParseSet(append(append([]string{}, cfg.Grants...), opts.grants...))
	if err != nil {
		return nil, err
	}
	return gate.New(logger, granted), nil
}

// buildClient constructs the configured reasoning backend. For Ollama
// with no model configured, the server's installed models decide.
func buildClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.Models.Backend {
	case "deepseek":
		return llm.NewDeepSeekClient(cfg.DeepSeek.BaseURL, cfg.DeepSeek.APIKey, cfg.DeepSeek.Model)
	default:
		model := cfg.Models.Default
		if model == "" {
			probe := llm.NewOllamaClient(cfg.Models.OllamaURL, "")
			picked, err := probe.DefaultModel(ctx)
			if err != nil {
				return nil, fmt.Errorf("pick default model: %w", err)
			}
			if picked == "" {
				return nil, errors.New("no models installed on the Ollama server; pull one or set models.default")
			}
			model = picked
		}
		return llm.NewOllamaClient(cfg.Models.OllamaURL, model), nil
	}
}

// openStore returns the configured session store, creating the data
// directory as needed.
func openStore(cfg *config.Config) (session.Store, func() error, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	if cfg.Session.Backend == "sqlite" {
		store, err := session.NewSQLiteStore(cfg.SessionsDBPath())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return session.NewFileStore(cfg.SessionsDir()), func() error { return nil }, nil
}

// buildEngine wires everything for a conversational command. The
// returned save function persists the session afterward; it is a no-op
// for unnamed (stateless) sessions.
func buildEngine(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts options) (*engine.Engine, func() error, error) {
	client, err := buildClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	g, err := buildGate(logger, cfg, opts)
	if err != nil {
		return nil, nil, err
	}

	var rtr *router.RuleRouter
	if !cfg.Router.Disabled {
		threshold := cfg.Router.Threshold
		if threshold == 0 {
			threshold = router.DefaultThreshold
		}
		rtr = router.New(logger, threshold)
	}

	sess := session.New()
	save := func() error { return nil }
	if opts.sessionName != "" {
		if err := session.ValidateName(opts.sessionName); err != nil {
			return nil, nil, err
		}
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		loaded, err := store.Load(opts.sessionName)
		switch {
		case err == nil:
			sess = loaded
		case errors.Is(err, session.ErrNotFound):
			// Fresh session under this name.
		default:
			closeStore()
			return nil, nil, err
		}
		save = func() error {
			defer closeStore()
			return store.Save(sess, opts.sessionName)
		}
	}

	e := engine.New(logger, engine.Options{
		Client:   client,
		Registry: buildRegistry(cfg),
		Skills:   skills.BuildRegistry(logger, skills.DefaultRoot(cfg.SkillsRoot())),
		Router:   rtr,
		Gate:     g,
		Persona:  cfg.Persona,
		Session:  sess,
	})
	return e, save, nil
}

// runAsk handles "ore ask <prompt>": one turn, streamed to stdout.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, opts options, prompt string) error {
	cfg, logger, err := setup(stderr, opts)
	if err != nil {
		return err
	}
	e, save, err := buildEngine(ctx, logger, cfg, opts)
	if err != nil {
		return err
	}

	if opts.outputFmt == "json" {
		turn, err := e.Execute(ctx, prompt)
		if err != nil {
			return err
		}
		if err := save(); err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(turn)
	}

	turn, err := e.ExecuteStream(ctx, prompt, func(token string) {
		fmt.Fprint(stdout, token)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	if d := turn.Decision; d != nil && !d.Fallback() {
		logger.Info("routed", "target", d.Target, "type", d.TargetType, "confidence", d.Confidence)
	}
	return save()
}

// runRepl handles "ore repl": a line-oriented conversation loop over
// stdin. "exit" or EOF ends the session; the session is saved once on
// the way out.
func runRepl(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, opts options) error {
	cfg, logger, err := setup(stderr, opts)
	if err != nil {
		return err
	}
	e, save, err := buildEngine(ctx, logger, cfg, opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "ore - type a prompt, or \"exit\" to quit")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		_, err := e.ExecuteStream(ctx, line, func(token string) {
			fmt.Fprint(stdout, token)
		})
		fmt.Fprintln(stdout)
		if err != nil {
			var denied *gate.DeniedError
			if errors.As(err, &denied) {
				fmt.Fprintf(stdout, "denied: %s (grant with -grant)\n", denied)
				continue
			}
			fmt.Fprintf(stderr, "error: %s\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return save()
}

// runTool handles "ore run <tool> [k=v...]": direct gated execution,
// no routing and no reasoner.
func runTool(ctx context.Context, stdout io.Writer, stderr io.Writer, opts options) error {
	cfg, logger, err := setup(stderr, opts)
	if err != nil {
		return err
	}
	g, err := buildGate(logger, cfg, opts)
	if err != nil {
		return err
	}
	registry := buildRegistry(cfg)

	name := opts.cmdArgs[0]
	args := map[string]string{}
	for _, pair := range opts.cmdArgs[1:] {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("bad argument %q (expected key=value)", pair)
		}
		args[k] = v
	}

	action, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(registry.Names(), ", "))
	}
	result, err := g.Run(ctx, action, args)
	if err != nil {
		return err
	}

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(stdout, result.Output)
	if result.Status == tools.StatusError {
		if msg, ok := result.Metadata[tools.MetaErrorMessage].(string); ok {
			return errors.New(msg)
		}
		return fmt.Errorf("tool %s failed", name)
	}
	return nil
}

// runTools lists the registered tools with their permissions and
// routing hints.
func runTools(stdout io.Writer, stderr io.Writer, opts options) error {
	cfg, _, err := setup(stderr, opts)
	if err != nil {
		return err
	}
	registry := buildRegistry(cfg)

	if opts.outputFmt == "json" {
		type toolInfo struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Permissions []string `json:"permissions"`
			Hints       []string `json:"hints,omitempty"`
		}
		var out []toolInfo
		for _, a := range registry.All() {
			out = append(out, toolInfo{
				Name:        a.Name(),
				Description: a.Description(),
				Permissions: a.RequiredPermissions().Strings(),
				Hints:       tools.Hints(a),
			})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, a := range registry.All() {
		perms := a.RequiredPermissions().String()
		if perms == "" {
			perms = "(none)"
		}
		fmt.Fprintf(stdout, "%-12s %s\n", a.Name(), a.Description())
		fmt.Fprintf(stdout, "             permissions: %s\n", perms)
	}
	return nil
}

// runSkills lists the discovered skills.
func runSkills(stdout io.Writer, stderr io.Writer, opts options) error {
	cfg, logger, err := setup(stderr, opts)
	if err != nil {
		return err
	}
	registry := skills.BuildRegistry(logger, skills.DefaultRoot(cfg.SkillsRoot()))

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(registry)
	}

	if len(registry) == 0 {
		fmt.Fprintf(stdout, "no skills found under %s\n", skills.DefaultRoot(cfg.SkillsRoot()))
		return nil
	}
	for _, t := range skills.Targets(registry) {
		fmt.Fprintf(stdout, "%-16s %s\n", t.Name, t.Description)
		if body, err := skills.LoadInstructions(registry[t.Name].Path); err == nil {
			if summary := skills.Summary(body); summary != "" {
				fmt.Fprintf(stdout, "                 %s\n", summary)
			}
		}
	}
	return nil
}

// runModels lists what the Ollama server has installed.
func runModels(ctx context.Context, stdout io.Writer, opts options) error {
	cfg, _, err := setup(io.Discard, opts)
	if err != nil {
		return err
	}
	client := llm.NewOllamaClient(cfg.Models.OllamaURL, "")
	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		return enc.Encode(models)
	}
	for _, m := range models {
		fmt.Fprintln(stdout, m)
	}
	return nil
}

// runSessions lists saved sessions from the configured store.
func runSessions(stdout io.Writer, stderr io.Writer, opts options) error {
	cfg, _, err := setup(stderr, opts)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	names, err := store.List()
	if err != nil {
		return err
	}
	if opts.outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		return enc.Encode(names)
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// ore is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "ore - conversational agent with gated tool execution")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ore [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ask <prompt>        Run a single conversational turn")
	fmt.Fprintln(w, "  repl                Interactive conversation loop")
	fmt.Fprintln(w, "  run <tool> [k=v]    Run a tool directly through the gate")
	fmt.Fprintln(w, "  tools               List registered tools")
	fmt.Fprintln(w, "  skills              List discovered skills")
	fmt.Fprintln(w, "  models              List installed Ollama models")
	fmt.Fprintln(w, "  sessions            List saved sessions")
	fmt.Fprintln(w, "  version             Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>      Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt    Output format: text (default) or json")
	fmt.Fprintln(w, "  -model <name>       Override the configured model")
	fmt.Fprintln(w, "  -backend <name>     Reasoning backend: ollama or deepseek")
	fmt.Fprintln(w, "  -session <name>     Load and save conversation history under this name")
	fmt.Fprintln(w, "  -grant <perm>       Grant a permission (repeatable)")
	fmt.Fprintln(w, "  -no-route           Skip intent routing for this invocation")
	fmt.Fprintln(w, "  -log-level <lvl>    trace, debug, info, warn, or error")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Permissions: %s\n", capability.NewSet(capability.All()...).String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintf(w, "  %s\n", strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}
